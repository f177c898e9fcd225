package chunk

import (
	"context"

	"github.com/wovenweb/ragpipe/model"
)

const (
	autoMemoryOptimizedFloor = 100 * 1024
	autoSemanticFloor        = 2 * 1024
	autoQualityFloor         = 0.7
)

// AutoStrategy analyzes content once, picks the first matching rule in
// priority order, chunks with it, scores the result, and retries once with
// the next-best strategy if quality falls below 0.7.
type AutoStrategy struct{}

func (AutoStrategy) Name() string { return "Auto" }

func (AutoStrategy) Chunk(ctx context.Context, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error) {
	primary, fallback := chooseAutoStrategy(content, svc)

	chunks, err := primary.Chunk(ctx, content, opts, svc)
	if err != nil {
		if fallback == nil {
			return nil, err
		}
		chunks, err = fallback.Chunk(ctx, content, opts, svc)
		if err != nil {
			return nil, err
		}
		return stampAutoStrategy(chunks, fallback.Name()), nil
	}

	chosen := primary.Name()
	quality := qualityScore(chunks, opts, content.MainText)
	if quality < autoQualityFloor && fallback != nil && fallback.Name() != primary.Name() {
		if altChunks, altErr := fallback.Chunk(ctx, content, opts, svc); altErr == nil && len(altChunks) > 0 {
			// The retry only wins if it actually scores better; a fallback
			// that is just as poor keeps the primary result.
			if qualityScore(altChunks, opts, content.MainText) > quality {
				chunks = altChunks
				chosen = fallback.Name()
			}
		}
	}

	return stampAutoStrategy(chunks, chosen), nil
}

func stampAutoStrategy(chunks []model.WebContentChunk, chosen string) []model.WebContentChunk {
	for i := range chunks {
		if chunks[i].AdditionalMetadata == nil {
			chunks[i].AdditionalMetadata = map[string]any{}
		}
		chunks[i].AdditionalMetadata["strategy"] = chosen
	}
	return chunks
}

// chooseAutoStrategy implements the decision table, returning the primary
// pick and the next-best fallback to retry with on low quality.
func chooseAutoStrategy(content model.ExtractedContent, svc Services) (Strategy, Strategy) {
	structureScore, length := analyzeForAuto(content)
	hasEmbedding := svc.Embedding != nil
	hasCompletion := svc.Completion != nil && svc.Completion.IsAvailable()

	switch {
	case length > autoMemoryOptimizedFloor:
		return MemoryOptimizedStrategy{}, ParagraphStrategy{}
	case structureScore > 0.7 && (content.Format == model.FormatHTML || content.Format == model.FormatMarkdown):
		return SmartStrategy{}, ParagraphStrategy{}
	case hasEmbedding && length > autoSemanticFloor:
		return SemanticStrategy{}, SmartStrategy{}
	case hasCompletion && length > autoSemanticFloor:
		return IntelligentStrategy{}, SmartStrategy{}
	case content.Format == model.FormatMarkdown || len(paragraphSegments(content.MainText)) >= 2:
		return ParagraphStrategy{}, FixedSizeStrategy{}
	default:
		return FixedSizeStrategy{}, ParagraphStrategy{}
	}
}

// analyzeForAuto computes the structural signal the Auto decision table
// reads: structureScore (headings*0.4 + tables/5*0.3 + lists/10*0.3,
// clamped to 1) and MainText byte length.
func analyzeForAuto(content model.ExtractedContent) (structureScore float64, length int) {
	var headings, tables, lists int
	var walk func([]model.StructuredElement)
	walk = func(els []model.StructuredElement) {
		for _, e := range els {
			switch e.Kind {
			case "heading":
				headings++
			case "table":
				tables++
			case "list":
				lists++
			}
			walk(e.Children)
		}
	}
	walk(content.StructuredElements)

	structureScore = float64(headings)*0.4 + float64(tables)/5*0.3 + float64(lists)/10*0.3
	if structureScore > 1 {
		structureScore = 1
	}
	length = len(content.MainText)
	return structureScore, length
}
