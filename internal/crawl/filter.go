package crawl

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/wovenweb/ragpipe/model"
)

// scopeFilter builds the admission predicate CrawlOptions.AllowedHosts,
// AllowedPathPrefixes, IncludePatterns and ExcludePatterns describe.
// doublestar evaluates Include/Exclude as glob patterns against the URL's
// path.
func scopeFilter(opts model.CrawlOptions) func(url.URL) bool {
	hosts := make(map[string]struct{}, len(opts.AllowedHosts))
	for _, h := range opts.AllowedHosts {
		hosts[strings.ToLower(h)] = struct{}{}
	}

	return func(u url.URL) bool {
		if len(hosts) > 0 {
			host := strings.ToLower(u.Hostname())
			if _, ok := hosts[host]; !ok {
				if _, ok := hosts[strings.TrimPrefix(host, "www.")]; !ok {
					return false
				}
			}
		}

		if len(opts.AllowedPathPrefixes) > 0 {
			var matched bool
			for _, prefix := range opts.AllowedPathPrefixes {
				if strings.HasPrefix(u.Path, prefix) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}

		path := strings.TrimPrefix(u.Path, "/")

		for _, pattern := range opts.ExcludePatterns {
			if ok, _ := doublestar.Match(pattern, path); ok {
				return false
			}
		}

		if len(opts.IncludePatterns) == 0 {
			return true
		}
		for _, pattern := range opts.IncludePatterns {
			if ok, _ := doublestar.Match(pattern, path); ok {
				return true
			}
		}
		return false
	}
}

