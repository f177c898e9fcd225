package content

import "github.com/wovenweb/ragpipe/model"

// lengthNormalizationCeiling is the MainText rune length treated as "full
// score" for the length component of QualityScore; longer text does not
// score higher, it just stays at 1.0.
const lengthNormalizationCeiling = 2000

// structuralKindCount is the number of distinct StructuredElement kinds
// the diversity component normalizes against (heading, paragraph, list,
// table, code, quote).
const structuralKindCount = 6

// QualityScore blends main-text length (0.5), structural diversity (0.3)
// and metadata presence (0.2) into a single [0,1] score.
func QualityScore(ec model.ExtractedContent) float64 {
	lengthScore := float64(len([]rune(ec.MainText))) / lengthNormalizationCeiling
	if lengthScore > 1 {
		lengthScore = 1
	}

	diversityScore := float64(distinctKinds(ec.StructuredElements)) / structuralKindCount
	if diversityScore > 1 {
		diversityScore = 1
	}

	metadataScore := metadataPresence(ec.Metadata)

	return lengthScore*0.5 + diversityScore*0.3 + metadataScore*0.2
}

func distinctKinds(elements []model.StructuredElement) int {
	seen := map[string]bool{}
	var walk func([]model.StructuredElement)
	walk = func(els []model.StructuredElement) {
		for _, e := range els {
			seen[e.Kind] = true
			walk(e.Children)
		}
	}
	walk(elements)
	return len(seen)
}

func metadataPresence(m model.HtmlMetadataSnapshot) float64 {
	present := 0
	total := 5
	if m.Title != "" {
		present++
	}
	if m.Description != "" {
		present++
	}
	if len(m.OpenGraph) > 0 {
		present++
	}
	if len(m.Twitter) > 0 {
		present++
	}
	if len(m.JSONLD) > 0 {
		present++
	}
	return float64(present) / float64(total)
}
