package chunk

import (
	"context"

	"github.com/wovenweb/ragpipe/model"
)

// FixedSizeStrategy slides a fixed-width window over MainText. It is the
// fast path and the quality reference point every other strategy is
// measured against. Window and stride are measured in the active size
// unit: runes by default, counter tokens when UseTokens is set — the
// counter decides, never len(text).
type FixedSizeStrategy struct{}

func (FixedSizeStrategy) Name() string { return "FixedSize" }

func (FixedSizeStrategy) Chunk(ctx context.Context, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error) {
	text := content.MainText
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	maxSize := opts.MaxChunkSize
	if maxSize <= 0 {
		maxSize = 1000
	}
	stride := maxSize - opts.OverlapSize
	if stride <= 0 {
		stride = maxSize
	}

	counter := svc.counter()

	// windowEnd/strideEnd map a size in the active unit onto a rune index.
	windowEnd := func(start int) int {
		if opts.UseTokens {
			return prefixEndByTokens(runes, start, maxSize, counter)
		}
		if end := start + maxSize; end < len(runes) {
			return end
		}
		return len(runes)
	}
	strideEnd := func(start int) int {
		if opts.UseTokens {
			return prefixEndByTokens(runes, start, stride, counter)
		}
		return start + stride
	}

	var chunks []model.WebContentChunk
	idx := 0
	for start := 0; start < len(runes); {
		select {
		case <-ctx.Done():
			return reindex(chunks), ctx.Err()
		default:
		}

		end := windowEnd(start)
		window := string(runes[start:end])

		if opts.PreserveStructure && end < len(runes) {
			if cut := lastSentenceEndInTail(window, 0.3); cut > 0 {
				window = window[:cut]
				end = start + len([]rune(window))
			}
		}

		chunks = append(chunks, newChunk(content.SourceURL.String(), "FixedSize", idx, start, end, window, svc, opts, nil))
		idx++

		if end >= len(runes) {
			break
		}

		// Overlap is realized by the stride (stride = maxSize -
		// overlapSize): consecutive windows share overlapSize units by
		// construction, so no extra pass is needed here.
		next := strideEnd(start)
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return reindex(chunks), nil
}
