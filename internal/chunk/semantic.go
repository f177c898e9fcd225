package chunk

import (
	"context"
	"math"
	"strings"

	"github.com/wovenweb/ragpipe/model"
)

// embeddingBatchSize is the max number of sentences sent to the embedding
// service per call.
const embeddingBatchSize = 32

// SemanticStrategy sentence-segments MainText, embeds every sentence, and
// places a chunk boundary wherever consecutive-sentence cosine similarity
// drops below SemanticThreshold, then post-merges adjacent micro-chunks
// whose combined size still fits and whose boundary similarity clears the
// stricter merge threshold (SemanticThreshold + 0.1 unless overridden via
// StrategyParameters).
type SemanticStrategy struct{}

func (SemanticStrategy) Name() string { return "Semantic" }

func (SemanticStrategy) Chunk(ctx context.Context, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error) {
	if svc.Embedding == nil {
		return nil, &Error{Message: "no embedding service registered", Cause: ErrCauseEmbeddingUnavailable}
	}

	segs := sentences(content.MainText)
	if len(segs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(segs))
	for i, s := range segs {
		texts[i] = s.text
	}

	embeddings := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := min(start+embeddingBatchSize, len(texts))
		batch, err := svc.Embedding.GetEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, &Error{Message: err.Error(), Cause: ErrCauseEmbeddingUnavailable}
		}
		copy(embeddings[start:end], batch)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	threshold := opts.SemanticThreshold
	if threshold <= 0 {
		threshold = 0.75
	}
	mergeThreshold := threshold + 0.1
	if v, ok := opts.StrategyParameters["semantic_merge_threshold"].(float64); ok {
		mergeThreshold = v
	}

	sims := make([]float64, len(segs))
	var groups [][]int
	cur := []int{0}
	for i := 1; i < len(segs); i++ {
		sims[i] = cosineSimilarity(embeddings[i-1], embeddings[i])
		if sims[i] < threshold {
			groups = append(groups, cur)
			cur = []int{i}
		} else {
			cur = append(cur, i)
		}
	}
	groups = append(groups, cur)

	maxSize := opts.MaxChunkSize
	if maxSize <= 0 {
		maxSize = 1000
	}
	groups = mergeSemanticGroups(groups, segs, sims, maxSize, mergeThreshold, svc, opts)

	var chunks []model.WebContentChunk
	idx := 0
	for _, g := range groups {
		start := segs[g[0]].start
		last := segs[g[len(g)-1]]
		end := last.start + len([]rune(last.text))
		text := joinSentenceGroup(segs, g)
		chunks = append(chunks, newChunk(content.SourceURL.String(), "Semantic", idx, start, end, text, svc, opts, nil))
		idx++
	}

	chunks = applyOverlap(chunks, opts.OverlapSize, opts.UseTokens, svc.counter(), nil)
	return reindex(chunks), nil
}

// mergeSemanticGroups folds group i into the running last group when the
// boundary similarity between them clears mergeThreshold and the combined
// text still fits maxSize.
func mergeSemanticGroups(groups [][]int, segs []segment, sims []float64, maxSize int, mergeThreshold float64, svc Services, opts model.ChunkingOptions) [][]int {
	if len(groups) == 0 {
		return groups
	}
	out := [][]int{groups[0]}
	for i := 1; i < len(groups); i++ {
		prev := out[len(out)-1]
		g := groups[i]
		boundarySim := sims[g[0]]
		combined := append(append([]int{}, prev...), g...)
		mergedText := joinSentenceGroup(segs, combined)
		if boundarySim >= mergeThreshold && sizeOf(svc, mergedText, opts) <= maxSize {
			out[len(out)-1] = combined
		} else {
			out = append(out, g)
		}
	}
	return out
}

func joinSentenceGroup(segs []segment, idxs []int) string {
	parts := make([]string, len(idxs))
	for i, idx := range idxs {
		parts[i] = segs[idx].text
	}
	return strings.Join(parts, " ")
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
