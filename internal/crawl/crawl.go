// Package crawl is the worker-pool crawler driving URL dedup, fetching,
// rate limiting and robots.txt policy across the four traversal modes
// CrawlOptions.Mode selects. It is the source end of the pipeline's
// bounded-channel topology: Run returns a channel the façade reads from
// while this package's own worker pool, not the channel consumer, bounds
// in-flight fetches.
//
// Admission order is fixed: robots Decide before frontier admission, the
// per-host rate limiter consulted before each fetch, the fetch itself
// resilience-wrapped, and link discovery feeding the frontier back.
package crawl

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wovenweb/ragpipe/internal/events"
	"github.com/wovenweb/ragpipe/internal/fetcher"
	"github.com/wovenweb/ragpipe/internal/frontier"
	"github.com/wovenweb/ragpipe/internal/metadata"
	"github.com/wovenweb/ragpipe/internal/resilience"
	"github.com/wovenweb/ragpipe/internal/robots"
	"github.com/wovenweb/ragpipe/model"
	"github.com/wovenweb/ragpipe/pkg/failure"
	"github.com/wovenweb/ragpipe/pkg/limiter"
	"github.com/wovenweb/ragpipe/pkg/retry"
	"github.com/wovenweb/ragpipe/pkg/timeutil"
	"github.com/wovenweb/ragpipe/pkg/urlutil"
)

// Crawler drives one crawl job. Build one per job via New; it is not
// meant to be reused across jobs since its rate limiter and robots cache
// accumulate per-host state for the job's lifetime.
type Crawler struct {
	opts  model.CrawlOptions
	fetch fetcher.Fetcher
	robot robots.Robot
	rate  limiter.RateLimiter
	resil *resilience.Resilience
	sink  metadata.MetadataSink
	rec   *events.Recorder

	pages atomic.Int64
	errs  atomic.Int64
}

// New builds a Crawler for opts, reporting fetch/error telemetry through
// sink and, if rec is non-nil, publishing lifecycle events on its bus.
func New(opts model.CrawlOptions, sink metadata.MetadataSink, rec *events.Recorder) *Crawler {
	gf := fetcher.NewGenericFetcher(sink)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	gf.Init(&http.Client{Timeout: timeout})

	rb := robots.NewCachedRobot(sink)
	ua := opts.UserAgent
	if ua == "" {
		ua = "ragpipe/1.0"
	}
	rb.Init(ua)

	rl := limiter.NewConcurrentRateLimiter()
	rl.SetBaseDelay(opts.BaseDelay)
	rl.SetJitter(opts.Jitter)
	rl.SetRandomSeed(opts.RandomSeed)

	policy := resilience.DefaultPolicy()
	policy.Timeout = timeout
	if opts.RetryCount > 0 {
		policy.RetryCount = opts.RetryCount
	}
	policy.BaseDelay = opts.BaseDelay
	policy.Jitter = opts.Jitter
	policy.RandomSeed = opts.RandomSeed

	return &Crawler{
		opts:  opts,
		fetch: &gf,
		robot: &rb,
		rate:  rl,
		resil: resilience.New("fetcher", policy),
		sink:  sink,
		rec:   rec,
	}
}

// Run crawls starting at seed and returns a channel of CrawlResult,
// closed once the crawl completes, the page budget is spent, or ctx is
// canceled. The channel is bounded at the job's concurrency so a slow
// consumer naturally applies backpressure to the worker pool.
func (c *Crawler) Run(ctx context.Context, seed url.URL) <-chan model.CrawlResult {
	buf := c.opts.Concurrency
	if buf <= 0 {
		buf = 1
	}
	out := make(chan model.CrawlResult, buf)

	start := time.Now()
	go func() {
		defer close(out)
		switch c.opts.Mode {
		case model.ModeSingle:
			c.runSingle(ctx, seed, out)
		case model.ModeSitemap:
			c.runSitemap(ctx, seed, out)
		case model.ModeDepthFirst:
			c.runTraversal(ctx, seed, out, true)
		default:
			c.runTraversal(ctx, seed, out, false)
		}
		if fin, ok := c.sink.(metadata.CrawlFinalizer); ok {
			fin.RecordFinalCrawlStats(int(c.pages.Load()), int(c.errs.Load()), time.Since(start))
		}
	}()

	return out
}

func (c *Crawler) runSingle(ctx context.Context, seed url.URL, out chan<- model.CrawlResult) {
	if c.opts.RespectRobots {
		if blocked, ok := c.robotsBlock(seed, 0, ""); ok {
			c.emit(ctx, out, blocked)
			return
		}
	}
	result := c.fetchOne(ctx, seed, 0)
	c.emit(ctx, out, result)
}

// robotsBlock checks target against robots policy and, if disallowed,
// records the decision and returns a CrawlResult carrying ErrorKind
// "RobotsDisallowed" along with ok=true. ok=false means the caller should
// proceed to fetch.
func (c *Crawler) robotsBlock(target url.URL, depth int, parentURL string) (model.CrawlResult, bool) {
	decision, err := c.robot.Decide(target)
	if err != nil || decision.Allowed {
		if err == nil && decision.CrawlDelay > 0 {
			c.rate.SetCrawlDelay(target.Hostname(), decision.CrawlDelay)
		}
		return model.CrawlResult{}, false
	}

	if c.rec != nil {
		c.rec.RecordError("crawl", target.String(), "RobotsDisallowed", "disallowed by robots.txt")
	}
	return model.CrawlResult{
		URL:          target,
		Depth:        depth,
		ParentURL:    parentURL,
		FetchedAt:    time.Now(),
		IsSuccess:    false,
		ErrorKind:    "RobotsDisallowed",
		ErrorMessage: "disallowed by robots.txt",
	}, true
}

// runTraversal drives BreadthFirst (dfs=false) and DepthFirst (dfs=true)
// crawling off one shared frontierQueue and a bounded worker pool.
func (c *Crawler) runTraversal(ctx context.Context, seed url.URL, out chan<- model.CrawlResult, dfs bool) {
	q := newFrontierQueue(dfs, c.opts.MaxPages)

	filter := scopeFilter(c.opts)
	if len(c.opts.AllowedHosts) == 0 {
		// Default scope: stay on the seed's host when the caller hasn't
		// named an explicit allow-list.
		base := filter
		filter = func(u url.URL) bool {
			return urlutil.SameRegistrableHost(u, seed) && base(u)
		}
	}

	q.admit(seed, 0, frontier.SourceSeed, "", filter)

	concurrency := c.opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.close()
		case <-stop:
		}
	}()
	defer close(stop)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cand, ok := q.pop()
				if !ok {
					return
				}
				c.processCandidate(ctx, cand, out, func(links []url.URL, depth int, parentURL string) {
					if c.opts.MaxDepth > 0 && depth >= c.opts.MaxDepth {
						return
					}
					for _, l := range links {
						q.admit(l, depth+1, frontier.SourceCrawl, parentURL, filter)
					}
				})
				q.done()
			}
		}()
	}

	wg.Wait()
}

// processCandidate applies robots/rate-limit policy, fetches the page,
// emits the result, and hands any discovered links to onLinks so the
// caller can decide whether/how to admit them (BFS/DFS only). On a robots
// disallow it emits a CrawlResult carrying ErrorKind "RobotsDisallowed"
// instead of fetching, and never calls onLinks for that candidate.
func (c *Crawler) processCandidate(ctx context.Context, cand frontier.CrawlAdmissionCandidate, out chan<- model.CrawlResult, onLinks func([]url.URL, int, string)) {
	target := cand.TargetURL()
	depth := cand.DiscoveryMetadata().Depth()
	parentURL := cand.DiscoveryMetadata().ParentURL()

	if c.opts.RespectRobots {
		if blocked, ok := c.robotsBlock(target, depth, parentURL); ok {
			c.emit(ctx, out, blocked)
			return
		}
	}

	if wait := c.rate.ResolveDelay(target.Hostname()); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}

	result := c.fetchOne(ctx, target, depth)
	result.ParentURL = parentURL
	c.rate.MarkLastFetchAsNow(target.Hostname())
	if result.IsSuccess {
		c.rate.ResetBackoff(target.Hostname())
	} else {
		c.rate.Backoff(target.Hostname())
	}

	var links []url.URL
	if result.IsSuccess && isLinkDiscoverable(result.ContentType) {
		links = discoverLinks(target, result.Body)
		result.DiscoveredLinks = urlStrings(links)
		result.ImageURLs = discoverImages(target, result.Body)
	}

	if !c.emit(ctx, out, result) {
		return
	}

	if result.IsSuccess && onLinks != nil && len(links) > 0 {
		onLinks(links, depth, target.String())
	}
}

// fetchOne performs one resilience-wrapped fetch. The fetcher's own
// retry knob is pinned to a single attempt here because resilience.New's
// composed policy already owns retry/backoff for the "fetcher" pool;
// letting both layers retry independently would square the effective
// attempt count.
func (c *Crawler) fetchOne(ctx context.Context, target url.URL, depth int) model.CrawlResult {
	fetchParam := fetcher.NewFetchParam(target, c.opts.UserAgent)
	retryParam := singleAttemptRetryParam()

	var lastFetchErr failure.ClassifiedError
	res, err := resilience.Execute(ctx, c.resil, target.Hostname(), func(fctx context.Context) (fetcher.FetchResult, failure.ClassifiedError) {
		r, ferr := c.fetch.Fetch(fctx, depth, fetchParam, retryParam)
		lastFetchErr = ferr
		return r, ferr
	})

	if err != nil {
		kind := classifyCrawlError(err)
		msg := err.Error()
		if lastFetchErr != nil {
			msg = lastFetchErr.Error()
		}
		if c.rec != nil {
			c.rec.RecordError("crawl", target.String(), kind, msg)
		}
		return model.CrawlResult{
			URL:          target,
			Depth:        depth,
			FetchedAt:    time.Now(),
			IsSuccess:    false,
			ErrorKind:    kind,
			ErrorMessage: msg,
		}
	}

	if c.rec != nil {
		c.rec.RecordFetch(target.String(), res.Code(), depth, time.Since(res.FetchedAt()))
	}

	headers := res.Headers()
	return model.CrawlResult{
		URL:           target,
		FinalURL:      res.URL(),
		StatusCode:    res.Code(),
		Headers:       headers,
		Body:          res.Body(),
		ContentType:   headers["Content-Type"],
		Encoding:      headers["Content-Encoding"],
		ContentLength: int64(len(res.Body())),
		Depth:         depth,
		FetchedAt:     res.FetchedAt(),
		FetchLatency:  time.Since(res.FetchedAt()),
		IsSuccess:     true,
	}
}

// isLinkDiscoverable gates link extraction to HTML/XML responses; an
// empty Content-Type is still tried since discoverLinks tolerates
// non-HTML bodies.
func isLinkDiscoverable(contentType string) bool {
	if contentType == "" {
		return true
	}
	lower := strings.ToLower(contentType)
	return strings.Contains(lower, "html") || strings.Contains(lower, "xml")
}

// emit delivers result downstream, tallying it for the terminal crawl
// stats. Returns false when ctx was canceled before delivery.
func (c *Crawler) emit(ctx context.Context, out chan<- model.CrawlResult, result model.CrawlResult) bool {
	select {
	case out <- result:
		c.pages.Add(1)
		if !result.IsSuccess {
			c.errs.Add(1)
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// runSitemap drains the sitemap rooted at seed (flattening one level of
// sitemap-index) and fetches every listed page, honoring
// MaxPages but not MaxDepth: sitemap entries carry no discovery depth, so
// every emitted CrawlResult reports depth 0.
func (c *Crawler) runSitemap(ctx context.Context, seed url.URL, out chan<- model.CrawlResult) {
	if c.opts.RespectRobots {
		if blocked, ok := c.robotsBlock(seed, 0, ""); ok {
			c.emit(ctx, out, blocked)
			return
		}
	}

	root := c.fetchOne(ctx, seed, 0)
	if !root.IsSuccess {
		c.emit(ctx, out, root)
		return
	}

	pages, children, err := parseSitemap(root.Body)
	if err != nil {
		if c.rec != nil {
			c.rec.RecordError("crawl", seed.String(), "ExtractionError", err.Error())
		}
		return
	}

	for _, child := range children {
		childResult := c.fetchOne(ctx, child, 0)
		if !childResult.IsSuccess {
			continue
		}
		childPages, _, err := parseSitemap(childResult.Body)
		if err == nil {
			pages = append(pages, childPages...)
		}
	}

	emitted := 0
	for _, page := range pages {
		if c.opts.MaxPages > 0 && emitted >= c.opts.MaxPages {
			break
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.opts.RespectRobots {
			if blocked, ok := c.robotsBlock(page, 0, seed.String()); ok {
				if !c.emit(ctx, out, blocked) {
					return
				}
				emitted++
				continue
			}
		}
		if wait := c.rate.ResolveDelay(page.Hostname()); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}
		result := c.fetchOne(ctx, page, 0)
		result.ParentURL = seed.String()
		c.rate.MarkLastFetchAsNow(page.Hostname())
		if !c.emit(ctx, out, result) {
			return
		}
		emitted++
	}
}

// singleAttemptRetryParam disables the fetcher's own retry loop; retry is
// owned entirely by the resilience-wrapped Execute call around fetchOne.
func singleAttemptRetryParam() retry.RetryParam {
	return retry.NewRetryParam(0, 0, 0, 1, timeutil.NewBackoffParam(0, 1, 0))
}

// classifyCrawlError maps a resilience/fetch failure onto the closed
// ErrorKind vocabulary for event/log reporting.
func classifyCrawlError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TimeoutError"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	default:
		return "NetworkError"
	}
}
