package robots

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/wovenweb/ragpipe/internal/metadata"
	"github.com/wovenweb/ragpipe/internal/robots/cache"
	"github.com/wovenweb/ragpipe/pkg/failure"
)

/*
Robot Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// Robot is the crawler-facing robots.txt authority. The scheduler calls
// Decide once per candidate URL, before the URL is ever handed to the
// frontier.
type Robot interface {
	Init(userAgent string)
	InitWithCache(userAgent string, c cache.Cache)
	Decide(u url.URL) (Decision, failure.ClassifiedError)
}

// robotState is the mutable part of CachedRobot, held behind a pointer so
// CachedRobot itself stays a comparable value (tests compare it against the
// zero value with ==).
type robotState struct {
	mu    sync.Mutex
	rules map[string]ruleSet
}

// CachedRobot is the default Robot. It fetches and parses robots.txt once
// per host for the crawl's lifetime: the parsed ruleSet is memoized here in
// addition to whatever caching RobotsFetcher itself performs, so repeated
// Decide calls against the same host never refetch.
type CachedRobot struct {
	fetcher   *RobotsFetcher
	userAgent string
	sink      metadata.MetadataSink
	state     *robotState
}

// NewCachedRobot constructs a CachedRobot reporting fetch/error events to
// sink. Init or InitWithCache must be called before Decide.
func NewCachedRobot(sink metadata.MetadataSink) CachedRobot {
	return CachedRobot{sink: sink}
}

// Init prepares r for use with a default in-memory cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache prepares r for use with a caller-supplied robots.txt cache.
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcher(r.sink, userAgent, c)
	r.state = &robotState{rules: make(map[string]ruleSet)}
}

// Decide reports whether u may be fetched under this robot's user agent,
// fetching and parsing the target host's robots.txt on first use and
// reusing the parsed ruleSet for every subsequent call against that host.
func (r *CachedRobot) Decide(u url.URL) (Decision, failure.ClassifiedError) {
	if r.state == nil {
		r.state = &robotState{rules: make(map[string]ruleSet)}
	}

	host := u.Hostname()
	if p := u.Port(); p != "" {
		host = host + ":" + p
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}

	r.state.mu.Lock()
	rs, cached := r.state.rules[host]
	r.state.mu.Unlock()

	if !cached {
		result, ferr := r.fetcher.Fetch(context.Background(), scheme, host)
		if ferr != nil {
			if r.sink != nil {
				r.sink.RecordError(time.Now(), "robots", "fetch", mapRobotsErrorToMetadataCause(ferr), ferr.Error(), nil)
			}
			return Decision{Url: u}, ferr
		}
		rs = MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)
		r.state.mu.Lock()
		r.state.rules[host] = rs
		r.state.mu.Unlock()
	}

	allowed, reason := rs.IsAllowed(u.Path)

	var delay time.Duration
	if cd := rs.CrawlDelay(); cd != nil {
		delay = *cd
	}

	return Decision{
		Url:        u,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: delay,
	}, nil
}
