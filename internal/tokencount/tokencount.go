// Package tokencount sizes text for the chunking strategies.
// Every strategy asks a Counter rather than using len(text) directly whenever
// ChunkingOptions.UseTokens is set, so a host can swap in an exact tokenizer
// without touching strategy code.
package tokencount

import "strings"

// Counter estimates or counts tokens in a string. The zero value of
// DefaultCounter is ready to use; a host may inject an exact tokenizer
// (e.g. a BPE implementation) behind the same interface.
type Counter interface {
	Count(text string) int
	Estimate(text string) int
	TruncateToLimit(text string, limit int) string
}

// DefaultCounter implements a whitespace+punctuation heuristic tokenizer:
// a simple split on runs of letters/digits and individual punctuation runs,
// adjusted for the ~4-chars-per-token rule of thumb for Latin scripts.
type DefaultCounter struct{}

// NewDefaultCounter returns the built-in heuristic tokenizer.
func NewDefaultCounter() DefaultCounter {
	return DefaultCounter{}
}

// Count walks text once and counts maximal runs of alphanumerics as single
// tokens and each other non-space rune as its own token (punctuation,
// symbols), which approximates how common BPE tokenizers split on
// word/punctuation boundaries.
func (DefaultCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case isSpace(r):
			inWord = false
		case isWordRune(r):
			if !inWord {
				count++
				inWord = true
			}
		default:
			// punctuation/symbol: each counts as its own token
			count++
			inWord = false
		}
	}
	return count
}

// Estimate is a cheap character-based approximation (~4 chars/token for
// Latin scripts) used when an exact count would be too costly, e.g. when
// sizing candidate window boundaries before committing to a split.
func (DefaultCounter) Estimate(text string) int {
	if text == "" {
		return 0
	}
	const charsPerToken = 4.0
	n := len([]rune(text))
	est := int(float64(n)/charsPerToken + 0.5)
	if est < 1 {
		est = 1
	}
	return est
}

// TruncateToLimit returns a prefix of text whose estimated token count does
// not exceed limit. It truncates on a word boundary where possible.
func (c DefaultCounter) TruncateToLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if c.Count(text) <= limit {
		return text
	}

	runes := []rune(text)
	// Binary-search the longest prefix whose token count fits.
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.Count(string(runes[:mid])) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	truncated := string(runes[:lo])
	if idx := strings.LastIndexAny(truncated, " \n\t"); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r >= 0x80:
		// treat non-ASCII letters (accents, CJK, etc.) as word runes too
		return true
	}
	return false
}

// SizeOf returns the size of text in the unit the caller asked for:
// tokens if useTokens, else raw character count.
func SizeOf(c Counter, text string, useTokens bool) int {
	if useTokens {
		return c.Count(text)
	}
	return len([]rune(text))
}
