package chunk

import (
	"context"
	"strings"

	"github.com/wovenweb/ragpipe/model"
)

// smartUnit is one block of a flattened structured-element walk: headings
// open a new section, code/table/list blocks are atomic (never split
// across chunks), everything else packs greedily like ParagraphStrategy.
type smartUnit struct {
	kind        string
	level       int
	text        string
	atomic      bool
	heading     bool
	offsetStart int
}

// headingFrame is one entry of the active ancestor-heading stack: the
// heading's own level, kept alongside its text so a new heading can pop
// every ancestor at its level or deeper.
type headingFrame struct {
	level int
	text  string
}

// SmartStrategy walks ExtractedContent.StructuredElements and opens a new
// chunk at each heading whose level is at or above the configured cap
// (default 3), packing paragraphs within a section and never splitting a
// table, code block, or list across chunks.
type SmartStrategy struct{}

func (SmartStrategy) Name() string { return "Smart" }

func (SmartStrategy) Chunk(ctx context.Context, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error) {
	return smartChunk(ctx, "Smart", content, opts, svc)
}

// DomStructureStrategy is the same walk as SmartStrategy under its
// alternate "DomStructure" strategy name.
type DomStructureStrategy struct{}

func (DomStructureStrategy) Name() string { return "DomStructure" }

func (DomStructureStrategy) Chunk(ctx context.Context, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error) {
	return smartChunk(ctx, "DomStructure", content, opts, svc)
}

func smartChunk(ctx context.Context, strategyName string, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error) {
	units := flattenForSmart(content.StructuredElements)
	if len(units) == 0 {
		return nil, nil
	}

	headingCap := opts.MaxHeadingCapLevel
	if headingCap <= 0 {
		headingCap = 3
	}
	maxSize := opts.MaxChunkSize
	if maxSize <= 0 {
		maxSize = 1000
	}

	var chunks []model.WebContentChunk
	var bucket []smartUnit
	idx := 0
	offset := 0
	var headingStack []headingFrame
	var bucketHeadingPath []string

	metadataFor := func(oversized bool) map[string]any {
		extra := map[string]any{}
		if len(bucketHeadingPath) > 0 {
			path := append([]string{}, bucketHeadingPath...)
			extra["heading_path"] = path
		}
		if oversized {
			extra["oversized"] = true
		}
		return extra
	}

	flush := func() {
		if len(bucket) == 0 {
			return
		}
		text := joinSmartUnits(bucket)
		start := bucket[0].offsetStart
		last := bucket[len(bucket)-1]
		end := last.offsetStart + len([]rune(last.text))
		chunks = append(chunks, newChunk(content.SourceURL.String(), strategyName, idx, start, end, text, svc, opts, metadataFor(false)))
		idx++
		bucket = nil
	}

	emitOversized := func(u smartUnit, start int) {
		end := start + len([]rune(u.text))
		c := newChunk(content.SourceURL.String(), strategyName, idx, start, end, u.text, svc, opts, metadataFor(true))
		c.Oversized = true
		chunks = append(chunks, c)
		idx++
	}

	for _, u := range units {
		select {
		case <-ctx.Done():
			flush()
			return reindex(chunks), ctx.Err()
		default:
		}

		unitStart := offset
		offset += len([]rune(u.text)) + 2

		if u.heading && u.level <= headingCap {
			flush()
			for len(headingStack) > 0 && headingStack[len(headingStack)-1].level >= u.level {
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingStack = append(headingStack, headingFrame{level: u.level, text: u.text})
			bucketHeadingPath = headingPathOf(headingStack)
			bucket = []smartUnit{withOffset(u, unitStart)}
			continue
		}

		if u.atomic && sizeOf(svc, u.text, opts) > maxSize {
			flush()
			emitOversized(u, unitStart)
			continue
		}

		trial := append(append([]smartUnit{}, bucket...), withOffset(u, unitStart))
		if len(bucket) > 0 && sizeOf(svc, joinSmartUnits(trial), opts) > maxSize {
			flush()
			bucket = []smartUnit{withOffset(u, unitStart)}
		} else {
			bucket = trial
		}
	}
	flush()

	stopBoundary := atomicBoundaries(chunks)
	chunks = applyOverlap(chunks, opts.OverlapSize, opts.UseTokens, svc.counter(), stopBoundary)
	return reindex(chunks), nil
}

func headingPathOf(stack []headingFrame) []string {
	path := make([]string, len(stack))
	for i, f := range stack {
		path[i] = f.text
	}
	return path
}

func withOffset(u smartUnit, start int) smartUnit {
	u2 := u
	u2.offsetStart = start
	return u2
}

func joinSmartUnits(units []smartUnit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.text
	}
	return strings.Join(parts, "\n\n")
}

// atomicBoundaries marks chunk indices produced from an oversized atomic
// element so applyOverlap does not carry context across that boundary.
func atomicBoundaries(chunks []model.WebContentChunk) map[int]bool {
	stop := map[int]bool{}
	for i, c := range chunks {
		if v, ok := c.AdditionalMetadata["oversized"]; ok && v == true {
			stop[i] = true
			if i+1 < len(chunks) {
				stop[i+1] = true
			}
		}
	}
	return stop
}

// flattenForSmart reduces the structured-element tree to a flat,
// document-order sequence of blocks: headings, paragraphs, code blocks,
// quotes and tables pass through as-is; a list's children are folded into
// one atomic block so the whole list lives or dies together in a chunk.
func flattenForSmart(elements []model.StructuredElement) []smartUnit {
	var units []smartUnit
	for _, el := range elements {
		switch el.Kind {
		case "heading":
			if el.Text == "" {
				continue
			}
			units = append(units, smartUnit{kind: "heading", level: el.Level, text: el.Text, heading: true})
		case "paragraph", "quote":
			if el.Text != "" {
				units = append(units, smartUnit{kind: el.Kind, text: el.Text})
			}
		case "code", "table":
			if el.Text != "" {
				units = append(units, smartUnit{kind: el.Kind, text: el.Text, atomic: true})
			}
		case "list":
			var parts []string
			for _, child := range el.Children {
				if child.Text != "" {
					parts = append(parts, "- "+child.Text)
				}
			}
			if len(parts) > 0 {
				units = append(units, smartUnit{kind: "list", text: strings.Join(parts, "\n"), atomic: true})
			}
		}
	}
	return units
}
