// Package chunk implements the chunking strategies: each strategy turns
// one ExtractedContent into an ordered, size-bounded WebContentChunk
// slice. Strategies share sizing (internal/tokencount), overlap, and
// quality-scoring helpers defined in this file; each strategy lives in its
// own file.
package chunk

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/wovenweb/ragpipe/internal/tokencount"
	"github.com/wovenweb/ragpipe/model"
	"github.com/wovenweb/ragpipe/pkg/failure"
	"github.com/wovenweb/ragpipe/service"
)

// Strategy is the shared contract every chunking strategy implements.
type Strategy interface {
	Name() string
	Chunk(ctx context.Context, content model.ExtractedContent, opts model.ChunkingOptions, svc Services) ([]model.WebContentChunk, error)
}

// Services bundles the optional host collaborators a strategy may need:
// embeddings for Semantic, completion for Intelligent. A pipeline builds
// one Services value per job and passes it to every strategy; a strategy
// that doesn't need a field simply ignores it.
type Services struct {
	Embedding  service.TextEmbeddingService
	Completion service.TextCompletionService
	Counter    tokencount.Counter
}

func (s Services) counter() tokencount.Counter {
	if s.Counter != nil {
		return s.Counter
	}
	return tokencount.NewDefaultCounter()
}

// ErrorCause closes the set of ways a chunking strategy can fail outright.
type ErrorCause string

const (
	ErrCauseEmbeddingUnavailable  ErrorCause = "EmbeddingUnavailable"
	ErrCauseCompletionUnavailable ErrorCause = "CompletionUnavailable"
	ErrCauseInvalidOptions        ErrorCause = "InvalidOptions"
)

// Error is chunk's ClassifiedError.
type Error struct {
	Message string
	Cause   ErrorCause
}

func (e *Error) Error() string {
	return "chunk: " + string(e.Cause) + ": " + e.Message
}

// Severity is always Recoverable: a chunking failure degrades to a
// synthetic error chunk rather than aborting the job.
func (e *Error) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

var _ failure.ClassifiedError = (*Error)(nil)

func sizeOf(svc Services, text string, opts model.ChunkingOptions) int {
	return tokencount.SizeOf(svc.counter(), text, opts.UseTokens)
}

// newChunk stamps the fields every strategy fills identically.
func newChunk(sourceURL, strategy string, index, start, end int, content string, svc Services, opts model.ChunkingOptions, extra map[string]any) model.WebContentChunk {
	if extra == nil {
		extra = map[string]any{}
	}
	return model.WebContentChunk{
		ChunkID:            uuid.NewString(),
		SourceURL:          sourceURL,
		Content:            content,
		Position:           index,
		StartOffset:        start,
		EndOffset:          end,
		TokenCount:         sizeOf(svc, content, opts),
		Strategy:           strategy,
		AdditionalMetadata: extra,
	}
}

// reindex assigns strictly increasing, gap-free Position values after a
// strategy has assembled its chunk slice out of order (e.g. post-merge).
func reindex(chunks []model.WebContentChunk) []model.WebContentChunk {
	for i := range chunks {
		chunks[i].Position = i
	}
	return chunks
}

// applyOverlap prepends overlapSize trailing units of chunk k's content to
// chunk k+1, unless doing so would cross an atomic-element boundary
// (stopBoundary marks indices where overlap must not be carried across,
// e.g. Smart/DomStructure section edges).
func applyOverlap(chunks []model.WebContentChunk, overlapSize int, useTokens bool, counter tokencount.Counter, stopBoundary map[int]bool) []model.WebContentChunk {
	if overlapSize <= 0 {
		return chunks
	}
	for i := len(chunks) - 1; i > 0; i-- {
		if stopBoundary[i] {
			continue
		}
		tail := tailUnits(chunks[i-1].Content, overlapSize, useTokens, counter)
		if tail == "" {
			continue
		}
		chunks[i].Content = tail + chunks[i].Content
		chunks[i].StartOffset -= len(tail)
		if chunks[i].StartOffset < 0 {
			chunks[i].StartOffset = 0
		}
	}
	return chunks
}

// tailUnits returns the trailing n units (tokens or runes) of text.
func tailUnits(text string, n int, useTokens bool, counter tokencount.Counter) string {
	runes := []rune(text)
	if !useTokens {
		if n >= len(runes) {
			return text
		}
		return string(runes[len(runes)-n:])
	}
	// Token-based tail: binary search the longest rune suffix whose token
	// count does not exceed n, since tokens don't map to a fixed rune width.
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi) / 2
		if counter.Count(string(runes[mid:])) <= n {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return string(runes[lo:])
}

// prefixEndByTokens returns the end index (into runes) of the longest
// prefix starting at start whose token count does not exceed tokens. It
// always advances by at least one rune so callers make progress even when
// a single rune exceeds the budget.
func prefixEndByTokens(runes []rune, start, tokens int, counter tokencount.Counter) int {
	lo, hi := start+1, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(string(runes[start:mid])) <= tokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// sentences splits text into sentence-terminated segments, returning each
// segment together with the byte offset (into text) where it starts.
// Sentence boundaries are '.', '!' or '?' followed by whitespace or EOF —
// a lightweight heuristic rather than a full NLP segmenter.
func sentences(text string) []segment {
	var out []segment
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '.' || c == '!' || c == '?' {
			j := i + 1
			for j < len(text) && (text[j] == '"' || text[j] == '\'' || text[j] == ')') {
				j++
			}
			if j >= len(text) || text[j] == ' ' || text[j] == '\n' || text[j] == '\t' {
				seg := text[start:j]
				if strings.TrimSpace(seg) != "" {
					out = append(out, segment{start: start, text: seg})
				}
				start = j
				for start < len(text) && isSep(text[start]) {
					start++
				}
				i = start - 1
			}
		}
	}
	if start < len(text) && strings.TrimSpace(text[start:]) != "" {
		out = append(out, segment{start: start, text: text[start:]})
	}
	return out
}

type segment struct {
	start int
	text  string
}

func isSep(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// lastSentenceEndInTail finds the byte offset (relative to text) of the
// last sentence-terminating punctuation mark that lies within the final
// fraction of text, or -1 if none qualifies. Used by FixedSize's
// preserve-structure snap-back.
func lastSentenceEndInTail(text string, fraction float64) int {
	cutoff := int(float64(len(text)) * (1 - fraction))
	best := -1
	for i := len(text) - 1; i >= cutoff && i >= 0; i-- {
		c := text[i]
		if c == '.' || c == '!' || c == '?' {
			best = i + 1
			break
		}
	}
	return best
}

// qualityScore is the post-chunk quality metric: the mean of
// size-in-range ratio, boundary-on-sentence ratio, and
// heading-preservation ratio.
func qualityScore(chunks []model.WebContentChunk, opts model.ChunkingOptions, sourceText string) float64 {
	if len(chunks) == 0 {
		return 0
	}
	inRange := 0
	onSentence := 0
	headingPreserved := 0
	for _, c := range chunks {
		size := len([]rune(c.Content))
		if size >= opts.MinChunkSize && size <= opts.MaxChunkSize+opts.OverlapSize {
			inRange++
		}
		trimmed := strings.TrimRight(c.Content, " \n\t\r")
		if len(trimmed) == 0 || endsOnSentence(trimmed) {
			onSentence++
		}
		if _, ok := c.AdditionalMetadata["heading_path"]; ok {
			headingPreserved++
		}
	}
	headingRatio := 1.0
	if hasHeadings(sourceText) {
		headingRatio = float64(headingPreserved) / float64(len(chunks))
	}
	return (float64(inRange)/float64(len(chunks)) +
		float64(onSentence)/float64(len(chunks)) +
		headingRatio) / 3
}

func endsOnSentence(s string) bool {
	last := s[len(s)-1]
	return last == '.' || last == '!' || last == '?'
}

func hasHeadings(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			return true
		}
	}
	return false
}
