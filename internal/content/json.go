package content

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/wovenweb/ragpipe/model"
)

// extractJSON walks a decoded JSON document into StructuredElements: each
// object key becomes a heading-kind node (one level deeper than its
// parent), each array becomes a list-kind node, and each scalar becomes a
// paragraph-kind leaf rendered as "key: value". Object keys are visited in
// sorted order since encoding/json.Unmarshal does not preserve source
// order for map[string]any; this keeps the walk (and its DFS position
// numbering) deterministic across repeated extractions of the same body.
func extractJSON(sourceURL url.URL, body []byte) (model.ExtractedContent, error) {
	_ = sourceURL
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return model.ExtractedContent{}, &Error{
			Message: "invalid JSON: " + err.Error(), Retryable: false, Cause: ErrCauseDecodeFailure,
		}
	}

	pos := 0
	next := func() int { pos++; return pos }

	var elements []model.StructuredElement
	var textBlocks []string

	switch v := data.(type) {
	case map[string]any:
		for _, k := range sortedKeys(v) {
			el, text := jsonWalk(k, v[k], 1, next)
			elements = append(elements, el)
			textBlocks = append(textBlocks, text...)
		}
	case []any:
		for i, item := range v {
			el, text := jsonWalk(fmt.Sprintf("[%d]", i), item, 1, next)
			elements = append(elements, el)
			textBlocks = append(textBlocks, text...)
		}
	default:
		el, text := jsonWalk("", data, 1, next)
		elements = append(elements, el)
		textBlocks = append(textBlocks, text...)
	}

	return model.ExtractedContent{
		MainText:           strings.Join(textBlocks, "\n\n"),
		StructuredElements: elements,
	}, nil
}

func jsonWalk(key string, val any, level int, next func() int) (model.StructuredElement, []string) {
	position := next()

	switch v := val.(type) {
	case map[string]any:
		heading := key
		if heading == "" {
			heading = "object"
		}
		var children []model.StructuredElement
		texts := []string{heading}
		for _, k := range sortedKeys(v) {
			childEl, childText := jsonWalk(k, v[k], level+1, next)
			children = append(children, childEl)
			texts = append(texts, childText...)
		}
		return model.StructuredElement{Kind: "heading", Level: clampLevel(level), Text: heading, Position: position, Children: children}, texts

	case []any:
		var children []model.StructuredElement
		var texts []string
		for i, item := range v {
			childEl, childText := jsonWalk(fmt.Sprintf("%s[%d]", key, i), item, level+1, next)
			children = append(children, childEl)
			texts = append(texts, childText...)
		}
		return model.StructuredElement{Kind: "list", Text: key, Position: position, Children: children}, texts

	default:
		rendered := renderJSONScalar(v)
		text := rendered
		if key != "" {
			text = key + ": " + rendered
		}
		return model.StructuredElement{Kind: "paragraph", Text: text, Position: position}, []string{text}
	}
}

func renderJSONScalar(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clampLevel(level int) int {
	if level > 6 {
		return 6
	}
	return level
}
