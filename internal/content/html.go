package content

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/wovenweb/ragpipe/internal/extractor"
	"github.com/wovenweb/ragpipe/internal/mdconvert"
	"github.com/wovenweb/ragpipe/internal/metadata"
	"github.com/wovenweb/ragpipe/internal/sanitizer"
	"github.com/wovenweb/ragpipe/model"
	"golang.org/x/net/html"
)

// extractHTML drives extractor.DomExtractor's layered content isolation,
// falls back to go-readability when every layer comes up empty, sanitizes
// whatever container was found (internal/sanitizer), and walks the result
// into StructuredElements, MainText, Images and Links.
func extractHTML(sourceURL url.URL, body []byte) (model.ExtractedContent, error) {
	var warnings []string

	dom := extractor.NewDomExtractor(metadata.NoopSink{})
	result, extractErr := dom.Extract(sourceURL, body)

	var contentNode *html.Node
	var docRoot *html.Node

	if extractErr != nil {
		warnings = append(warnings, "dom isolation failed: "+extractErr.Error())
		article, rerr := readability.FromReader(bytes.NewReader(body), &sourceURL)
		if rerr != nil {
			return model.ExtractedContent{
				MainText: "",
				Warnings: append(warnings, "readability fallback failed: "+rerr.Error()),
			}, nil
		}
		fallbackDoc, perr := html.Parse(strings.NewReader(article.Content))
		if perr != nil {
			return model.ExtractedContent{
				MainText: article.TextContent,
				Warnings: append(warnings, "readability output unparseable, using plain text"),
			}, nil
		}
		contentNode = fallbackDoc
		docRoot = fallbackDoc
		warnings = append(warnings, "used readability fallback")
	} else {
		contentNode = result.ContentNode
		docRoot = result.DocumentRoot
	}

	htmlSanitizer := sanitizer.NewHTMLSanitizer(metadata.NoopSink{})
	sanitized, sanErr := htmlSanitizer.Sanitize(contentNode)
	cleanNode := contentNode
	if sanErr != nil {
		warnings = append(warnings, "sanitization failed, using unsanitized container: "+sanErr.Error())
	} else if sanitized.GetContentNode() != nil {
		cleanNode = sanitized.GetContentNode()
	}

	elements, mainText := walkContent(cleanNode)
	images, links := collectImagesAndLinks(cleanNode, sourceURL)
	snapshot := extractHTMLMetadata(docRoot)
	rendered, mdErr := renderMarkdown(cleanNode)
	if mdErr != nil {
		warnings = append(warnings, "markdown rendering failed: "+mdErr.Error())
	}

	return model.ExtractedContent{
		MainText:           mainText,
		StructuredElements: elements,
		Images:             images,
		Links:              links,
		Metadata:           snapshot,
		Warnings:           warnings,
		RenderedMarkdown:   rendered,
	}, nil
}

// renderMarkdown converts the isolated content node to GFM Markdown via
// internal/mdconvert, independent of the sanitization outcome above: a
// clean node is still worth rendering even when HtmlSanitizer itself
// failed and this function fell back to the unsanitized container.
func renderMarkdown(contentNode *html.Node) (string, error) {
	if contentNode == nil {
		return "", nil
	}
	doc := sanitizer.NewSanitizedHTMLDoc(contentNode, nil)
	rule := mdconvert.NewRule(metadata.NoopSink{})
	result, err := rule.Convert(doc)
	if err != nil {
		return "", err
	}
	return string(result.GetMarkdownContent()), nil
}

// walkContent produces a flat, document-order list of StructuredElements
// (lists nest their list_items; every other kind is emitted as a single
// top-level node) and the MainText concatenation.
func walkContent(root *html.Node) ([]model.StructuredElement, string) {
	if root == nil {
		return nil, ""
	}

	var elements []model.StructuredElement
	var textBlocks []string
	pos := 0
	nextPos := func() int { pos++; return pos }

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				text := collectText(n)
				if text != "" {
					elements = append(elements, model.StructuredElement{
						Kind: "heading", Level: int(n.Data[1] - '0'), Text: text, Position: nextPos(),
					})
					textBlocks = append(textBlocks, text)
				}
				return
			case "p":
				text := collectText(n)
				if text != "" {
					elements = append(elements, model.StructuredElement{Kind: "paragraph", Text: text, Position: nextPos()})
					textBlocks = append(textBlocks, text)
				}
				return
			case "pre":
				text := collectText(n)
				elements = append(elements, model.StructuredElement{Kind: "code", Text: text, Position: nextPos()})
				if text != "" {
					textBlocks = append(textBlocks, text)
				}
				return
			case "blockquote":
				text := collectText(n)
				if text != "" {
					elements = append(elements, model.StructuredElement{Kind: "quote", Text: text, Position: nextPos()})
					textBlocks = append(textBlocks, text)
				}
				return
			case "hr":
				elements = append(elements, model.StructuredElement{Kind: "divider", Position: nextPos()})
				return
			case "ul", "ol":
				parentPos := nextPos()
				var children []model.StructuredElement
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && c.Data == "li" {
						text := collectText(c)
						if text == "" {
							continue
						}
						children = append(children, model.StructuredElement{Kind: "list_item", Text: text, Position: nextPos()})
						textBlocks = append(textBlocks, "- "+text)
					}
				}
				elements = append(elements, model.StructuredElement{Kind: "list", Position: parentPos, Children: children})
				return
			case "table":
				text := collectText(n)
				elements = append(elements, model.StructuredElement{Kind: "table", Text: text, Position: nextPos()})
				if text != "" {
					textBlocks = append(textBlocks, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)

	mainText := strings.Join(textBlocks, "\n\n")
	return elements, mainText
}

// collectText concatenates every non-blank text run under n, joined by
// "\n", skipping only <script> and <style> subtrees; nested block
// elements are descended into like any other element.
func collectText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node == nil {
			return
		}
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style":
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, "\n")
}

// collectImagesAndLinks walks root for <img> and <a href> in document
// order, resolving and classifying each against sourceURL: image srcs come
// back absolute with their alt/title attributes, element position and up
// to 200 characters of surrounding text; links carry a normalized href
// plus internal/anchor/email/phone classification.
func collectImagesAndLinks(root *html.Node, sourceURL url.URL) ([]model.ImageRef, []model.LinkRef) {
	if root == nil {
		return nil, nil
	}

	var images []model.ImageRef
	var links []model.LinkRef
	pos := 0

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode {
			pos++
			switch n.Data {
			case "img":
				src := strings.TrimSpace(attrVal(n, "src"))
				if src != "" {
					images = append(images, model.ImageRef{
						URL:             resolveRef(sourceURL, src),
						Alt:             attrVal(n, "alt"),
						Title:           attrVal(n, "title"),
						Position:        pos,
						SurroundingText: snippet(surroundingText(n)),
					})
				}
			case "a":
				href := strings.TrimSpace(attrVal(n, "href"))
				if href != "" {
					links = append(links, classifyLink(sourceURL, href, strings.TrimSpace(collectText(n))))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)
	return images, links
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// surroundingText is the visible text of the image's nearest ancestor that
// carries any, giving the snippet context beyond the tag itself.
func surroundingText(n *html.Node) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if t := collectText(p); strings.TrimSpace(t) != "" {
			return t
		}
	}
	return ""
}
