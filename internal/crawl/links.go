package crawl

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wovenweb/ragpipe/pkg/urlutil"
)

// discoverLinks extracts every anchor href from an HTML body and resolves
// it against base. The crawler needs this earlier than content
// extraction, on raw fetched bytes, to keep discovering outbound links
// independent of whether the page ultimately gets extracted as HTML,
// Markdown, or anything else.
func discoverLinks(base url.URL, body []byte) []url.URL {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var out []url.URL
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		out = append(out, urlutil.Canonicalize(*resolved))
	})
	return out
}

// discoverImages extracts every <img src> from an HTML body, resolved
// against base, for CrawlResult.ImageURLs. Mirrors
// discoverLinks: collected on raw fetched bytes so it doesn't depend on
// whether the page is later extracted as HTML.
func discoverImages(base url.URL, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var out []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		out = append(out, resolved.String())
	})
	return out
}

// urlStrings renders a slice of url.URL as their string forms, in order.
func urlStrings(urls []url.URL) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u.String()
	}
	return out
}
