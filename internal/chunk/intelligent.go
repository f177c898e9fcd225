package chunk

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wovenweb/ragpipe/model"
	"github.com/wovenweb/ragpipe/service"
)

// intelligentSplitPoint is one element of the completion service's
// requested JSON schema "[{position, reason, heading, confidence}]".
type intelligentSplitPoint struct {
	Position   int     `json:"position"`
	Reason     string  `json:"reason"`
	Heading    string  `json:"heading"`
	Confidence float64 `json:"confidence"`
}

// intelligentConfidenceFloor is the mean-confidence cutoff below which the
// strategy distrusts the model's split points and falls back to Smart.
const intelligentConfidenceFloor = 0.5

// IntelligentStrategy asks the host's completion service to propose split
// positions with a reason/heading/confidence per position, splits MainText
// there, and falls back to SmartStrategy whenever no completion service is
// registered, the response doesn't parse, or mean confidence is too low.
type IntelligentStrategy struct{}

func (IntelligentStrategy) Name() string { return "Intelligent" }

func (IntelligentStrategy) Chunk(ctx context.Context, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error) {
	fallback := func() ([]model.WebContentChunk, error) {
		chunks, err := SmartStrategy{}.Chunk(ctx, content, opts, svc)
		for i := range chunks {
			chunks[i].Strategy = "Intelligent(fallback:Smart)"
		}
		return chunks, err
	}

	if svc.Completion == nil || !svc.Completion.IsAvailable() {
		return fallback()
	}

	prompt := intelligentPrompt(content.MainText, opts)
	raw, err := svc.Completion.Complete(ctx, prompt, service.CompletionOptions{Temperature: 0.2, ResponseFormat: "json"})
	if err != nil {
		return fallback()
	}

	var points []intelligentSplitPoint
	if err := json.Unmarshal([]byte(raw), &points); err != nil || len(points) == 0 {
		return fallback()
	}

	var confSum float64
	for _, p := range points {
		confSum += p.Confidence
	}
	if confSum/float64(len(points)) < intelligentConfidenceFloor {
		return fallback()
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Position < points[j].Position })

	runes := []rune(content.MainText)
	var chunks []model.WebContentChunk
	idx := 0
	prev := 0
	for _, p := range points {
		pos := p.Position
		if pos <= prev || pos > len(runes) {
			continue
		}
		extra := map[string]any{}
		if p.Heading != "" {
			extra["heading_path"] = []string{p.Heading}
		}
		if p.Reason != "" {
			extra["split_reason"] = p.Reason
		}
		text := string(runes[prev:pos])
		chunks = append(chunks, newChunk(content.SourceURL.String(), "Intelligent", idx, prev, pos, text, svc, opts, extra))
		idx++
		prev = pos

		select {
		case <-ctx.Done():
			return reindex(chunks), ctx.Err()
		default:
		}
	}
	if prev < len(runes) {
		chunks = append(chunks, newChunk(content.SourceURL.String(), "Intelligent", idx, prev, len(runes), string(runes[prev:]), svc, opts, nil))
	}

	chunks = applyOverlap(chunks, opts.OverlapSize, opts.UseTokens, svc.counter(), nil)
	return reindex(chunks), nil
}

func intelligentPrompt(text string, opts model.ChunkingOptions) string {
	return fmt.Sprintf(
		"Split the following document into coherent sections of roughly %d characters each. "+
			"Respond with a JSON array only, each element shaped as "+
			`{"position": <rune offset>, "reason": <short string>, "heading": <nearest heading or "">, "confidence": <0-1>}.`+
			"\n\nDocument:\n%s", opts.MaxChunkSize, text,
	)
}
