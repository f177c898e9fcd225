package sanitizer_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wovenweb/ragpipe/internal/sanitizer"
	"golang.org/x/net/html"
)

const singleRootLinearDoc = `<html><body>
<main>
<h1>Documentation</h1>
<p>Main documentation content for the project.</p>
<h2>Usage</h2>
<p>How to use the thing.</p>
</main>
</body></html>`

func parseDoc(t *testing.T, raw string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(raw))
	require.NoError(t, err, "Failed to parse test HTML")
	return doc
}

func TestSanitize_SuccessCases(t *testing.T) {
	passDocs := []struct {
		name string
		html string
	}{
		{
			name: "single_root_linear",
			html: singleRootLinearDoc,
		},
		{
			name: "repairable_heading_skips",
			html: `<html><body><main>
<h1>Title</h1>
<h3>Getting Started Section</h3>
<p>Intro text.</p>
</main></body></html>`,
		},
		{
			name: "structural_anchors_without_h1",
			html: `<html><body><article><p>Reference prose with no headings at all.</p></article></body></html>`,
		},
		{
			name: "duplicate_nodes_identical",
			html: `<html><body><main>
<h1>Documentation</h1>
<div class="warning"><p>Important Notice</p></div>
<p>Regular Content</p>
<div class="warning"><p>Important Notice</p></div>
<p>More Content</p>
</main></body></html>`,
		},
	}

	for _, tc := range passDocs {
		t.Run(tc.name, func(t *testing.T) {
			mockSink := &mockMetadataSink{}
			s := sanitizer.NewHTMLSanitizer(mockSink)

			result, sanitizationErr := s.Sanitize(parseDoc(t, tc.html))

			assert.NoError(t, sanitizationErr, "Sanitize should not return error for pass document: %s", tc.name)
			assert.NotNil(t, result.GetContentNode(), "Result should have a non-nil content node")
		})
	}
}

// TestSanitize_StructurallyInvalidCases covers documents the sanitizer must
// refuse to repair, each mapped to its granular error cause.
func TestSanitize_StructurallyInvalidCases(t *testing.T) {
	structurallyInvalid := []struct {
		name          string
		html          string
		expectedCause sanitizer.SanitizationErrorCause
	}{
		{
			name: "competing_document_roots",
			html: `<html><body>
<main><h1>First Doc</h1><p>a</p></main>
<main><h1>Second Doc</h1><p>b</p></main>
</body></html>`,
			expectedCause: sanitizer.ErrCauseCompetingRoots,
		},
		{
			name:          "no_structural_anchor",
			html:          `<html><body><p>Just loose prose.</p><p>No headings, no landmarks.</p></body></html>`,
			expectedCause: sanitizer.ErrCauseNoStructuralAnchor,
		},
		{
			name: "multiple_h1_ambiguous_root",
			html: `<html><body>
<h1>First Title</h1>
<p>some text</p>
<h1>Second Title</h1>
<p>other text</p>
</body></html>`,
			expectedCause: sanitizer.ErrCauseMultipleH1NoRoot,
		},
	}

	for _, tc := range structurallyInvalid {
		t.Run(tc.name, func(t *testing.T) {
			mockSink := &mockMetadataSink{}
			s := sanitizer.NewHTMLSanitizer(mockSink)

			result, sanitizationErr := s.Sanitize(parseDoc(t, tc.html))

			assert.Error(t, sanitizationErr, "Sanitize should return error for structurally invalid document: %s", tc.name)
			assert.Nil(t, result.GetContentNode(), "Result should have nil content node for structurally invalid document")

			var sanErr *sanitizer.SanitizationError
			if errors.As(sanitizationErr, &sanErr) {
				assert.Equal(t, tc.expectedCause, sanErr.Cause,
					"Expected %s for structurally invalid document: %s", tc.expectedCause, tc.name)
			}
		})
	}
}

func TestSanitize_NilNode(t *testing.T) {
	mockSink := &mockMetadataSink{}
	s := sanitizer.NewHTMLSanitizer(mockSink)

	result, err := s.Sanitize(nil)

	assert.Error(t, err, "Sanitize should return error for nil node")
	assert.Nil(t, result.GetContentNode(), "Result should have nil content node")
	assert.NotEmpty(t, mockSink.errors, "Error should be recorded in metadata sink")
}

func TestSanitize_EmptyNode(t *testing.T) {
	mockSink := &mockMetadataSink{}
	s := sanitizer.NewHTMLSanitizer(mockSink)

	emptyNode := &html.Node{
		Type: html.ElementNode,
		Data: "div",
	}

	result, err := s.Sanitize(emptyNode)

	assert.Error(t, err, "Sanitize should return error for empty node (no children)")
	assert.Nil(t, result.GetContentNode(), "Result should have nil content node")
	assert.NotEmpty(t, mockSink.errors, "Error should be recorded in metadata sink")
}

func TestSanitize_ReturnsSanitizationErrorType(t *testing.T) {
	mockSink := &mockMetadataSink{}
	s := sanitizer.NewHTMLSanitizer(mockSink)

	_, err := s.Sanitize(nil)

	require.Error(t, err)
	assert.NotNil(t, err.Severity, "Error should implement ClassifiedError interface")
	var sanErr *sanitizer.SanitizationError
	assert.True(t, errors.As(err, &sanErr), "Error should be a *sanitizer.SanitizationError")
}

// TestSanitize_HeadingNormalization verifies that heading level skips are
// renumbered: a jump of more than one level down is pulled up to the next
// level, while jumps back up are left alone.
func TestSanitize_HeadingNormalization(t *testing.T) {
	mockSink := &mockMetadataSink{}
	s := sanitizer.NewHTMLSanitizer(mockSink)

	doc := parseDoc(t, `<html><body><main>
<h1>Title</h1>
<h3>Getting Started Section</h3>
<p>intro</p>
<h2>Installation Guide</h2>
<h4>System Requirements</h4>
<p>reqs</p>
</main></body></html>`)

	result, sanitizationErr := s.Sanitize(doc)

	require.NoError(t, sanitizationErr, "Sanitize should not return error for heading normalization document")
	require.NotNil(t, result.GetContentNode(), "Result should have a non-nil content node")

	actualNormalized := normalizeHtmlForTest(renderHtmlForTest(result.GetContentNode()))

	assert.Contains(t, actualNormalized, "<h2>Getting Started Section</h2>", "h1 -> h3 should be renumbered to h2")
	assert.Contains(t, actualNormalized, "<h2>Installation Guide</h2>", "h2 should remain h2")
	assert.Contains(t, actualNormalized, "<h3>System Requirements</h3>", "h2 -> h4 should be renumbered to h3")
}

// TestSanitize_DuplicateAndEmptyNodeRemoval verifies that byte-identical
// sibling blocks are deduplicated while unique content survives.
func TestSanitize_DuplicateAndEmptyNodeRemoval(t *testing.T) {
	mockSink := &mockMetadataSink{}
	s := sanitizer.NewHTMLSanitizer(mockSink)

	doc := parseDoc(t, `<html><body><main>
<h1>Documentation</h1>
<p>Main documentation content.</p>
<div class="warning"><p>Important Notice</p></div>
<p>Regular Content</p>
<div class="warning"><p>Important Notice</p></div>
<p>More Content</p>
<div></div>
</main></body></html>`)

	result, sanitizationErr := s.Sanitize(doc)

	require.NoError(t, sanitizationErr, "Sanitize should not return error for duplicate removal document")
	require.NotNil(t, result.GetContentNode(), "Result should have a non-nil content node")

	actualNormalized := normalizeHtmlForTest(renderHtmlForTest(result.GetContentNode()))

	warningCount := strings.Count(actualNormalized, `class="warning"`)
	assert.Equal(t, 1, warningCount, "Should have exactly one warning div after duplicate removal")

	assert.Contains(t, actualNormalized, "Important Notice", "First warning content should be preserved")
	assert.Contains(t, actualNormalized, "Regular Content", "Regular content should be preserved")
	assert.Contains(t, actualNormalized, "More Content", "More content should be preserved")
	assert.Contains(t, actualNormalized, "Documentation", "Document title should be preserved")
}

// TestSanitize_URLExtraction verifies that URLs are properly extracted:
// http(s) and relative hrefs come back exactly as authored, while
// fragment-only links, non-HTTP schemes, blank hrefs, and duplicates are
// skipped.
func TestSanitize_URLExtraction(t *testing.T) {
	mockSink := &mockMetadataSink{}
	s := sanitizer.NewHTMLSanitizer(mockSink)

	doc := parseDoc(t, `<html><body><main>
<h1>Links</h1>
<p><a href="https://example.com/page1">one</a></p>
<p><a href="http://example.org/page2">two</a></p>
<p><a href="./getting-started.html">three</a></p>
<p><a href="../api/reference.html">four</a></p>
<p><a href="/absolute/path/page.html">five</a></p>
<p><a href="#section1">anchor</a></p>
<p><a href="mailto:dev@example.com">mail</a></p>
<p><a href="javascript:void(0)">js</a></p>
<p><a href="   ">blank</a></p>
<p><a href="https://example.com/page1">duplicate</a></p>
</main></body></html>`)

	result, sanitizationErr := s.Sanitize(doc)

	require.NoError(t, sanitizationErr, "Sanitize should not return error for URL extraction document")
	require.NotNil(t, result.GetContentNode(), "Result should have a non-nil content node")

	urls := result.GetDiscoveredURLs()
	urlStrings := make([]string, len(urls))
	for i, u := range urls {
		urlStrings[i] = u.String()
	}

	assert.Len(t, urls, 5, "Should extract exactly 5 URLs")

	assert.Contains(t, urlStrings, "https://example.com/page1", "Should extract HTTPS absolute URL once")
	assert.Contains(t, urlStrings, "http://example.org/page2", "Should extract HTTP absolute URL")
	assert.Contains(t, urlStrings, "./getting-started.html", "Should extract relative URL as-is")
	assert.Contains(t, urlStrings, "../api/reference.html", "Should extract relative URL with parent path")
	assert.Contains(t, urlStrings, "/absolute/path/page.html", "Should extract absolute path URL")

	for _, u := range urlStrings {
		assert.NotContains(t, u, "mailto:", "Should skip mailto: links")
		assert.NotContains(t, u, "javascript:", "Should skip javascript: links")
		assert.False(t, strings.HasPrefix(u, "#"), "Should skip fragment-only links")
	}
}

// TestSanitize_Determinism verifies that the sanitizer produces identical
// output (both rendered HTML and discovered URL order) when run repeatedly
// on the same input.
func TestSanitize_Determinism(t *testing.T) {
	const iterations = 5
	results := make([]string, iterations)
	urlResults := make([][]string, iterations)

	for i := 0; i < iterations; i++ {
		mockSink := &mockMetadataSink{}
		s := sanitizer.NewHTMLSanitizer(mockSink)

		doc := parseDoc(t, singleRootLinearDoc)

		result, sanitizationErr := s.Sanitize(doc)
		require.NoError(t, sanitizationErr)
		require.NotNil(t, result.GetContentNode())

		results[i] = renderHtmlForTest(result.GetContentNode())

		urls := result.GetDiscoveredURLs()
		urlStrings := make([]string, len(urls))
		for j, u := range urls {
			urlStrings[j] = u.String()
		}
		urlResults[i] = urlStrings
	}

	for i := 1; i < iterations; i++ {
		assert.Equal(t, results[0], results[i], "Iteration %d produced different HTML output than iteration 0", i)
		assert.Equal(t, urlResults[0], urlResults[i], "Iteration %d produced different URL list than iteration 0", i)
	}
}
