package content

import (
	"net/url"
	"strings"

	"github.com/wovenweb/ragpipe/model"
)

// extractPlainText treats body as prose: blank-line-separated runs of
// lines become paragraphs, in document order.
func extractPlainText(sourceURL url.URL, body []byte) (model.ExtractedContent, error) {
	_ = sourceURL
	paragraphs := splitParagraphs(string(body))

	var elements []model.StructuredElement
	for i, p := range paragraphs {
		elements = append(elements, model.StructuredElement{Kind: "paragraph", Text: p, Position: i + 1})
	}

	return model.ExtractedContent{
		MainText:           strings.Join(paragraphs, "\n\n"),
		StructuredElements: elements,
	}, nil
}

// splitParagraphs groups lines into blank-line-delimited paragraphs,
// trimming surrounding whitespace and dropping empty runs.
func splitParagraphs(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var paragraphs []string
	var cur []string
	flush := func() {
		if len(cur) == 0 {
			return
		}
		if p := strings.TrimSpace(strings.Join(cur, "\n")); p != "" {
			paragraphs = append(paragraphs, p)
		}
		cur = nil
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		cur = append(cur, l)
	}
	flush()
	return paragraphs
}
