package content

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wovenweb/ragpipe/model"
	"golang.org/x/net/html"
)

// extractHTMLMetadata builds the synchronous HTML metadata snapshot:
// OpenGraph is accepted only if og:title is present, Twitter
// Card only if twitter:card is present, and JSON-LD blocks are parsed and
// indexed by @type (duplicates overwrite silently).
func extractHTMLMetadata(docRoot *html.Node) model.HtmlMetadataSnapshot {
	snapshot := model.HtmlMetadataSnapshot{
		OpenGraph: map[string]string{},
		Twitter:   map[string]string{},
		JSONLD:    map[string]map[string]any{},
	}
	if docRoot == nil {
		return snapshot
	}

	gq := goquery.NewDocumentFromNode(docRoot)

	snapshot.Title = strings.TrimSpace(gq.Find("title").First().Text())

	og := map[string]string{}
	twitter := map[string]string{}
	gq.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, hasContent := s.Attr("content")
		if !hasContent {
			return
		}
		if name, ok := s.Attr("name"); ok {
			switch name {
			case "description":
				snapshot.Description = content
			default:
				if strings.HasPrefix(name, "twitter:") {
					twitter[strings.TrimPrefix(name, "twitter:")] = content
				}
			}
		}
		if prop, ok := s.Attr("property"); ok && strings.HasPrefix(prop, "og:") {
			og[strings.TrimPrefix(prop, "og:")] = content
		}
	})

	if _, ok := og["title"]; ok {
		snapshot.OpenGraph = og
	}
	if _, ok := twitter["card"]; ok {
		snapshot.Twitter = twitter
	}

	gq.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		kind, _ := payload["@type"].(string)
		if kind == "" {
			kind = "Unknown"
		}
		snapshot.JSONLD[kind] = payload
	})

	return snapshot
}
