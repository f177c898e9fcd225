package content

import (
	"net/url"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/wovenweb/ragpipe/model"
)

// extractMarkdown walks a gomarkdown AST into StructuredElements, MainText,
// Images and Links, the Markdown-format counterpart to extractHTML's DOM
// walk. Heading text is captured structurally only — it does not join the
// MainText paragraph stream, so paragraph-oriented chunking sees prose
// blocks without section titles interleaved.
func extractMarkdown(sourceURL url.URL, body []byte) (model.ExtractedContent, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return model.ExtractedContent{Warnings: []string{"empty markdown document"}}, nil
	}

	p := parser.New()
	doc := markdown.Parse(body, p)

	var elements []model.StructuredElement
	var textBlocks []string
	var images []model.ImageRef
	var links []model.LinkRef
	pos := 0
	nextPos := func() int { pos++; return pos }

	var insideList bool
	var listChildren []model.StructuredElement
	var listPos int

	flushList := func() {
		if insideList {
			elements = append(elements, model.StructuredElement{Kind: "list", Position: listPos, Children: listChildren})
			insideList = false
			listChildren = nil
		}
	}

	// collectInlineRefs pulls the images and links nested under a block
	// node, classifying them against sourceURL with the block's own text as
	// the image's surrounding snippet.
	collectInlineRefs := func(n ast.Node, blockText string, blockPos int) {
		ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
			if !entering {
				return ast.GoToNext
			}
			switch t := node.(type) {
			case *ast.Image:
				images = append(images, model.ImageRef{
					URL:             resolveRef(sourceURL, string(t.Destination)),
					Alt:             inlineText(t),
					Title:           string(t.Title),
					Position:        blockPos,
					SurroundingText: snippet(blockText),
				})
			case *ast.Link:
				links = append(links, classifyLink(sourceURL, string(t.Destination), inlineText(t)))
			}
			return ast.GoToNext
		})
	}

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Heading:
			flushList()
			text := inlineText(n)
			if text != "" {
				at := nextPos()
				elements = append(elements, model.StructuredElement{Kind: "heading", Level: n.Level, Text: text, Position: at})
				collectInlineRefs(n, text, at)
			}
			return ast.SkipChildren
		case *ast.CodeBlock:
			flushList()
			text := string(n.Literal)
			elements = append(elements, model.StructuredElement{Kind: "code", Text: text, Position: nextPos()})
			if strings.TrimSpace(text) != "" {
				textBlocks = append(textBlocks, text)
			}
		case *ast.BlockQuote:
			flushList()
			text := inlineText(n)
			if text != "" {
				at := nextPos()
				elements = append(elements, model.StructuredElement{Kind: "quote", Text: text, Position: at})
				textBlocks = append(textBlocks, text)
				collectInlineRefs(n, text, at)
			}
			return ast.SkipChildren
		case *ast.HorizontalRule:
			flushList()
			elements = append(elements, model.StructuredElement{Kind: "divider", Position: nextPos()})
		case *ast.List:
			flushList()
			insideList = true
			listPos = nextPos()
		case *ast.ListItem:
			text := inlineText(n)
			if text != "" {
				at := nextPos()
				listChildren = append(listChildren, model.StructuredElement{Kind: "list_item", Text: text, Position: at})
				textBlocks = append(textBlocks, "- "+text)
				collectInlineRefs(n, text, at)
			}
			return ast.SkipChildren
		case *ast.Table:
			flushList()
			text := inlineText(n)
			at := nextPos()
			elements = append(elements, model.StructuredElement{Kind: "table", Text: text, Position: at})
			if text != "" {
				textBlocks = append(textBlocks, text)
			}
			collectInlineRefs(n, text, at)
			return ast.SkipChildren
		case *ast.Paragraph:
			flushList()
			text := inlineText(n)
			if text != "" {
				at := nextPos()
				elements = append(elements, model.StructuredElement{Kind: "paragraph", Text: text, Position: at})
				textBlocks = append(textBlocks, text)
				collectInlineRefs(n, text, at)
			}
			return ast.SkipChildren
		}
		return ast.GoToNext
	})
	flushList()

	return model.ExtractedContent{
		MainText:           strings.Join(textBlocks, "\n\n"),
		StructuredElements: elements,
		Images:             images,
		Links:              links,
	}, nil
}

// inlineText concatenates the text content under an AST node.
func inlineText(n ast.Node) string {
	var parts []string
	ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
		if entering {
			if t, ok := node.(*ast.Text); ok {
				if s := strings.TrimSpace(string(t.Literal)); s != "" {
					parts = append(parts, s)
				}
			}
			if c, ok := node.(*ast.CodeBlock); ok {
				if s := strings.TrimSpace(string(c.Literal)); s != "" {
					parts = append(parts, s)
				}
			}
		}
		return ast.GoToNext
	})
	return strings.Join(parts, " ")
}
