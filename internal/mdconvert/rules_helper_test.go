package mdconvert_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wovenweb/ragpipe/internal/mdconvert"
	"github.com/wovenweb/ragpipe/internal/metadata"
	"github.com/wovenweb/ragpipe/internal/sanitizer"
	"golang.org/x/net/html"
)

// createTestRule creates a StrictConversionRule with a NoopSink for testing.
func createTestRule() *mdconvert.StrictConversionRule {
	return mdconvert.NewRule(&metadata.NoopSink{})
}

// createSanitizedDoc creates a SanitizedHTMLDoc from HTML content for testing.
func createSanitizedDoc(t *testing.T, htmlContent string) sanitizer.SanitizedHTMLDoc {
	t.Helper()
	node := parseHTML(t, htmlContent)
	return sanitizer.NewSanitizedHTMLDoc(node, nil)
}

// parseHTML parses an HTML string and returns the body node.
// This helper mimics how the sanitizer would provide content nodes.
func parseHTML(t *testing.T, htmlContent string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(htmlContent))
	require.NoError(t, err)

	// Find the body node
	var body *html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	if body != nil {
		return body
	}
	return doc
}
