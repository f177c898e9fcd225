package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ExtractParam tunes the Layer 3 text-density heuristic (used once the
// semantic-container and known-selector layers have both failed).
type ExtractParam struct {
	// LinkDensityThreshold is the link-text/total-text ratio past which a
	// candidate container's score is penalized (navigation-heavy blocks).
	LinkDensityThreshold float64
	// BodySpecificityBias requires a non-body candidate to score at least
	// this multiple of <body>'s own score before it is preferred, so a
	// small well-scored <div> doesn't win over the whole page by a hair.
	BodySpecificityBias float64
}

// DefaultExtractParam mirrors the constants the heuristic used before
// they were parameterized.
func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		LinkDensityThreshold: 0.5,
		BodySpecificityBias:  1.2,
	}
}
