package crawl

import (
	"encoding/xml"
	"net/url"
)

// sitemapURLSet and sitemapIndex mirror the sitemaps.org 0.90 schema: a
// <urlset> of <url><loc> entries, or a <sitemapindex> of <sitemap><loc>
// entries pointing at child sitemaps.
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc      string `xml:"loc"`
	LastMod  string `xml:"lastmod"`
	Priority string `xml:"priority"`
}

type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// parseSitemap returns the page URLs a sitemap body yields. A
// <sitemapindex> is flattened exactly one level: its child sitemap
// locations come back in childSitemaps for the caller to
// fetch and parse again (as a <urlset>, not recursively as another
// index), rather than this function recursing itself.
func parseSitemap(body []byte) (pages []url.URL, childSitemaps []url.URL, err error) {
	var idx sitemapIndex
	if xmlErr := xml.Unmarshal(body, &idx); xmlErr == nil && len(idx.Sitemaps) > 0 {
		for _, s := range idx.Sitemaps {
			if u, perr := url.Parse(s.Loc); perr == nil {
				childSitemaps = append(childSitemaps, *u)
			}
		}
		return nil, childSitemaps, nil
	}

	var set sitemapURLSet
	if xmlErr := xml.Unmarshal(body, &set); xmlErr != nil {
		return nil, nil, xmlErr
	}
	for _, e := range set.URLs {
		if u, perr := url.Parse(e.Loc); perr == nil {
			pages = append(pages, *u)
		}
	}
	return pages, nil, nil
}
