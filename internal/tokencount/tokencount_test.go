package tokencount_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wovenweb/ragpipe/internal/tokencount"
)

func TestDefaultCounter_Count_EmptyStringIsZero(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	assert.Equal(t, 0, c.Count(""))
}

func TestDefaultCounter_Count_WordsAndPunctuation(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	// "hello" + "," + "world" + "." = 4 tokens.
	assert.Equal(t, 4, c.Count("hello, world."))
}

func TestDefaultCounter_Count_WhitespaceOnlyIsZero(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	assert.Equal(t, 0, c.Count("   \n\t  "))
}

func TestDefaultCounter_Estimate_NeverBelowOneForNonEmptyText(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	assert.Equal(t, 1, c.Estimate("a"))
}

func TestDefaultCounter_Estimate_EmptyStringIsZero(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	assert.Equal(t, 0, c.Estimate(""))
}

func TestDefaultCounter_TruncateToLimit_ReturnsWholeTextWhenUnderLimit(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	text := "short text"
	assert.Equal(t, text, c.TruncateToLimit(text, 100))
}

func TestDefaultCounter_TruncateToLimit_ShrinksToFitAndStaysWithinLimit(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	text := "one two three four five six seven eight nine ten"
	out := c.TruncateToLimit(text, 3)
	assert.LessOrEqual(t, c.Count(out), 3)
	assert.NotEqual(t, text, out)
}

func TestDefaultCounter_TruncateToLimit_ZeroLimitIsEmpty(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	assert.Equal(t, "", c.TruncateToLimit("anything", 0))
}

func TestSizeOf_UsesRuneCountWhenTokensDisabled(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	assert.Equal(t, 5, tokencount.SizeOf(c, "hello", false))
}

func TestSizeOf_UsesTokenCountWhenTokensEnabled(t *testing.T) {
	c := tokencount.NewDefaultCounter()
	assert.Equal(t, tokencount.NewDefaultCounter().Count("hello, world."), tokencount.SizeOf(c, "hello, world.", true))
}
