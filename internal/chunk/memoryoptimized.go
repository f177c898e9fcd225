package chunk

import (
	"context"

	"github.com/wovenweb/ragpipe/model"
)

// MemoryOptimizedStrategy packs paragraphs like ParagraphStrategy but
// additionally bounds the accumulating buffer at MemoryBufferBytes
// (default 1 MiB), forcing a flush whenever the rolling buffer would cross
// that ceiling even if maxChunkSize alone would not yet trigger one.
// The Strategy interface still returns a materialized slice, but the
// accumulation never holds more than one buffer's worth of text at a time.
type MemoryOptimizedStrategy struct{}

func (MemoryOptimizedStrategy) Name() string { return "MemoryOptimized" }

func (MemoryOptimizedStrategy) Chunk(ctx context.Context, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error) {
	segs := paragraphSegments(content.MainText)
	if len(segs) == 0 {
		return nil, nil
	}

	maxSize := opts.MaxChunkSize
	if maxSize <= 0 {
		maxSize = 1000
	}
	bufLimit := opts.MemoryBufferBytes
	if bufLimit <= 0 {
		bufLimit = 1 << 20
	}

	var chunks []model.WebContentChunk
	var bucket []segment
	bucketBytes := 0
	idx := 0

	flush := func() {
		if len(bucket) == 0 {
			return
		}
		text := joinBucket(bucket)
		start := bucket[0].start
		last := bucket[len(bucket)-1]
		end := last.start + len([]rune(last.text))
		chunks = append(chunks, newChunk(content.SourceURL.String(), "MemoryOptimized", idx, start, end, text, svc, opts, nil))
		idx++
		bucket = nil
		bucketBytes = 0
	}

	for _, seg := range segs {
		select {
		case <-ctx.Done():
			flush()
			return reindex(chunks), ctx.Err()
		default:
		}

		// The rolling buffer is accounted in raw bytes on purpose — it
		// bounds memory, not chunk size. Chunk sizing itself always goes
		// through sizeOf and honors UseTokens.
		segBytes := len(seg.text)
		if len(bucket) > 0 {
			trial := append(append([]segment{}, bucket...), seg)
			overSize := sizeOf(svc, joinBucket(trial), opts) > maxSize
			overBuffer := bucketBytes+segBytes+2 > bufLimit
			if overSize || overBuffer {
				flush()
			}
		}
		bucket = append(bucket, seg)
		bucketBytes += segBytes + 2
	}
	flush()

	chunks = applyOverlap(chunks, opts.OverlapSize, opts.UseTokens, svc.counter(), nil)
	return reindex(chunks), nil
}
