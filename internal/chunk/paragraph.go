package chunk

import (
	"context"
	"strings"

	"github.com/wovenweb/ragpipe/model"
)

// ParagraphStrategy splits on blank-line-delimited blocks (MainText
// already joins block-level elements with "\n\n") and greedily packs them
// until the next paragraph would exceed maxChunkSize.
type ParagraphStrategy struct{}

func (ParagraphStrategy) Name() string { return "Paragraph" }

func (ParagraphStrategy) Chunk(ctx context.Context, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error) {
	segs := paragraphSegments(content.MainText)
	if len(segs) == 0 {
		return nil, nil
	}

	maxSize := opts.MaxChunkSize
	if maxSize <= 0 {
		maxSize = 1000
	}

	var chunks []model.WebContentChunk
	var bucket []segment
	idx := 0

	flush := func() {
		if len(bucket) == 0 {
			return
		}
		text := joinBucket(bucket)
		start := bucket[0].start
		last := bucket[len(bucket)-1]
		end := last.start + len([]rune(last.text))
		chunks = append(chunks, newChunk(content.SourceURL.String(), "Paragraph", idx, start, end, text, svc, opts, nil))
		idx++
		bucket = nil
	}

	for _, seg := range segs {
		select {
		case <-ctx.Done():
			flush()
			return reindex(chunks), ctx.Err()
		default:
		}

		trial := append(append([]segment{}, bucket...), seg)
		if len(bucket) > 0 && sizeOf(svc, joinBucket(trial), opts) > maxSize {
			flush()
			bucket = []segment{seg}
		} else {
			bucket = trial
		}
	}
	flush()

	chunks = applyOverlap(chunks, opts.OverlapSize, opts.UseTokens, svc.counter(), nil)
	return reindex(chunks), nil
}

func joinBucket(bucket []segment) string {
	parts := make([]string, len(bucket))
	for i, s := range bucket {
		parts[i] = s.text
	}
	return strings.Join(parts, "\n\n")
}

// paragraphSegments splits text on its "\n\n" block separators (the join
// the content extractors use) and reports each non-blank block's rune
// offset into text alongside its content.
func paragraphSegments(text string) []segment {
	parts := strings.Split(text, "\n\n")
	var segs []segment
	offset := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			segs = append(segs, segment{start: offset, text: p})
		}
		offset += len([]rune(p)) + 2
	}
	return segs
}
