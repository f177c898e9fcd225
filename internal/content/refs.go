package content

import (
	"net/url"
	"strings"

	"github.com/wovenweb/ragpipe/model"
	"github.com/wovenweb/ragpipe/pkg/urlutil"
)

// snippetLimit bounds ImageRef.SurroundingText.
const snippetLimit = 200

// snippet collapses whitespace in s and truncates it to snippetLimit runes.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= snippetLimit {
		return s
	}
	return string(runes[:snippetLimit])
}

// resolveRef resolves a possibly-relative reference against base,
// returning raw unchanged when it does not parse.
func resolveRef(base url.URL, raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// classifyLink builds a LinkRef for an href as authored on a page at
// sourceURL: fragment-only hrefs are anchors (and by definition internal),
// mailto:/tel: are flagged as email/phone and kept verbatim, and
// everything else resolves against the page and is canonicalized, with
// IsInternal true when the target stays on the page's registrable host.
func classifyLink(sourceURL url.URL, href, text string) model.LinkRef {
	ref := model.LinkRef{URL: href, Text: text}
	switch {
	case strings.HasPrefix(href, "#"):
		ref.IsAnchor = true
		ref.IsInternal = true
		return ref
	case strings.HasPrefix(href, "mailto:"):
		ref.IsEmail = true
		return ref
	case strings.HasPrefix(href, "tel:"):
		ref.IsPhone = true
		return ref
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ref
	}
	canon := urlutil.Canonicalize(*sourceURL.ResolveReference(parsed))
	ref.URL = canon.String()
	ref.IsInternal = urlutil.SameRegistrableHost(canon, sourceURL)
	return ref
}
