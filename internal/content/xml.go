package content

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/url"
	"strings"

	"github.com/wovenweb/ragpipe/model"
)

// extractXML walks the XML 1.0 token stream into StructuredElements: an
// element with children becomes a heading-kind node, a leaf element with
// character data becomes a paragraph-kind node rendered as "tag: text".
// Recursion follows encoding/xml's own nesting (each call consumes tokens
// up to its own matching EndElement), so document order falls out of the
// tokenizer for free.
func extractXML(sourceURL url.URL, body []byte) (model.ExtractedContent, error) {
	_ = sourceURL
	dec := xml.NewDecoder(bytes.NewReader(body))

	pos := 0
	next := func() int { pos++; return pos }

	var elements []model.StructuredElement
	var textBlocks []string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.ExtractedContent{}, &Error{
				Message: "invalid XML: " + err.Error(), Retryable: false, Cause: ErrCauseDecodeFailure,
			}
		}
		if se, ok := tok.(xml.StartElement); ok {
			el, text := xmlWalk(dec, se, 1, next)
			elements = append(elements, el)
			textBlocks = append(textBlocks, text...)
		}
	}

	return model.ExtractedContent{
		MainText:           strings.Join(textBlocks, "\n\n"),
		StructuredElements: elements,
	}, nil
}

func xmlWalk(dec *xml.Decoder, start xml.StartElement, level int, next func() int) (model.StructuredElement, []string) {
	position := next()

	var children []model.StructuredElement
	var texts []string
	var charData strings.Builder

loop:
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			childEl, childText := xmlWalk(dec, t, level+1, next)
			children = append(children, childEl)
			texts = append(texts, childText...)
		case xml.CharData:
			charData.Write(t)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				break loop
			}
		}
	}

	name := start.Name.Local
	text := strings.TrimSpace(charData.String())

	if len(children) > 0 {
		heading := []string{name}
		return model.StructuredElement{Kind: "heading", Level: clampLevel(level), Text: name, Position: position, Children: children},
			append(heading, texts...)
	}

	if text == "" {
		return model.StructuredElement{Kind: "paragraph", Text: name, Position: position}, nil
	}
	rendered := name + ": " + text
	return model.StructuredElement{Kind: "paragraph", Text: rendered, Position: position}, []string{rendered}
}
