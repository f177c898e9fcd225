package sanitizer

import (
	"net/url"

	"golang.org/x/net/html"
)

type SanitizedHTMLDoc struct {
	contentNode    *html.Node
	discoveredUrls []url.URL
}

// NewSanitizedHTMLDoc builds a SanitizedHTMLDoc directly from an already-clean
// content node, for callers (mdconvert's tests, extraction's markdown
// rendering step) that have a node which bypassed HtmlSanitizer.Sanitize.
func NewSanitizedHTMLDoc(contentNode *html.Node, discoveredUrls []url.URL) SanitizedHTMLDoc {
	return SanitizedHTMLDoc{contentNode: contentNode, discoveredUrls: discoveredUrls}
}

func (s *SanitizedHTMLDoc) GetDiscoveredURLs() []url.URL {
	return s.discoveredUrls
}

// GetContentNode returns the sanitized content subtree, or nil if
// sanitization failed before a content node was produced.
func (s *SanitizedHTMLDoc) GetContentNode() *html.Node {
	return s.contentNode
}
