package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

var collapseSlashes = regexp.MustCompile(`/{2,}`)

// Canonicalize applies a deterministic normalization to a URL, producing a
// canonical form usable as a dedup key across an entire crawl.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - A leading "www." label on the host is stripped
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - Consecutive slashes in the path are collapsed to one
//   - Trailing slash is removed (except for root "/")
//   - Fragment is removed
//   - Query string is preserved verbatim
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(u)) == Canonicalize(u)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}
	canonical.Host = stripWWW(canonical.Host)

	canonical.Path = collapseSlashes.ReplaceAllString(canonical.Path, "/")
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""

	return canonical
}

// stripWWW removes a leading "www." label from a hostname, leaving the port
// (if any) and the rest of the host untouched. A host with only one label
// after "www." (e.g. "www.com") is returned unchanged.
func stripWWW(host string) string {
	hostname := host
	port := ""
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.Contains(host[idx:], "]") {
		hostname, port = host[:idx], host[idx:]
	}
	if strings.HasPrefix(hostname, "www.") && strings.Contains(hostname[len("www."):], ".") {
		hostname = hostname[len("www."):]
	}
	return hostname + port
}

// lowerASCII converts ASCII characters to lowercase without allocating when
// the input is already lowercase.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

// Resolve turns a possibly-relative reference into an absolute URL using the
// given scheme and host as the base when ref has neither.
func Resolve(ref url.URL, scheme, host string) url.URL {
	if ref.Host != "" {
		return ref
	}
	resolved := ref
	resolved.Scheme = scheme
	resolved.Host = host
	return resolved
}

// SameRegistrableHost reports whether two URLs share a host once a
// leading "www." label is stripped from both sides.
func SameRegistrableHost(a, b url.URL) bool {
	return lowerASCII(stripWWW(a.Host)) == lowerASCII(stripWWW(b.Host))
}

// FilterByHost keeps only the URLs whose host matches the given host
// (case-insensitively), stripping "www." from both sides before comparing.
func FilterByHost(host string, urls []url.URL) []url.URL {
	target := lowerASCII(stripWWW(host))
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if lowerASCII(stripWWW(u.Host)) == target {
			filtered = append(filtered, u)
		}
	}
	return filtered
}
