// Package pipeline is the public façade wiring the crawl, extraction,
// optional enhancement, and chunking stages together: a bounded-channel
// worker topology for ProcessWebsiteAsync and a synchronous, single-URL
// shortcut for the other operations.
package pipeline

import (
	"context"
	"encoding/json"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wovenweb/ragpipe/internal/cache"
	"github.com/wovenweb/ragpipe/internal/chunk"
	"github.com/wovenweb/ragpipe/internal/content"
	"github.com/wovenweb/ragpipe/internal/crawl"
	"github.com/wovenweb/ragpipe/internal/enhance"
	"github.com/wovenweb/ragpipe/internal/events"
	"github.com/wovenweb/ragpipe/internal/metadata"
	"github.com/wovenweb/ragpipe/internal/resilience"
	"github.com/wovenweb/ragpipe/internal/tokencount"
	"github.com/wovenweb/ragpipe/model"
	"github.com/wovenweb/ragpipe/service"
)

// Pipeline holds the host-supplied collaborators shared across every job it
// runs: completion/embedding services, a token counter, an optional cache,
// and the "ai" resilience pool enhancement calls share. It is safe to call
// concurrently from multiple goroutines; each call builds its own per-job
// Crawler, Recorder and worker pools.
type Pipeline struct {
	opts model.PipelineOptions

	completion  service.TextCompletionService
	embedding   service.TextEmbeddingService
	imageToText service.ImageToTextService
	webMetadata service.WebMetadataExtractor
	counter     tokencount.Counter
	cache       *cache.Cache

	aiResil *resilience.Resilience
}

// Option configures optional collaborators at construction time.
type Option func(*Pipeline)

// WithCompletionService wires a host's completion service, enabling the
// Intelligent chunking strategy and every enhancement operation.
func WithCompletionService(s service.TextCompletionService) Option {
	return func(p *Pipeline) { p.completion = s }
}

// WithEmbeddingService wires a host's embedding service, enabling the
// Semantic chunking strategy.
func WithEmbeddingService(s service.TextEmbeddingService) Option {
	return func(p *Pipeline) { p.embedding = s }
}

// WithTokenCounter overrides the default heuristic tokenizer.
func WithTokenCounter(c tokencount.Counter) Option {
	return func(p *Pipeline) { p.counter = c }
}

// WithImageToTextService wires a host's image description/OCR service so
// extraction can fill in Description for images that carry no alt text.
func WithImageToTextService(s service.ImageToTextService) Option {
	return func(p *Pipeline) { p.imageToText = s }
}

// WithWebMetadataExtractor wires a host's metadata extractor, called
// alongside the built-in HTML metadata snapshot to populate
// ExtractedContent.Metadata.HostMetadata.
func WithWebMetadataExtractor(s service.WebMetadataExtractor) Option {
	return func(p *Pipeline) { p.webMetadata = s }
}

// WithCache wires the optional memoization layer in front of
// extraction.
func WithCache(c *cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// New builds a Pipeline ready to serve any of its five façade operations.
func New(opts model.PipelineOptions, options ...Option) *Pipeline {
	p := &Pipeline{opts: opts, aiResil: resilience.New("ai", resilience.DefaultPolicy())}
	for _, o := range options {
		o(p)
	}
	return p
}

// pipelineItem carries one URL's content through the enhance/chunk stages
// of the streaming topology.
type pipelineItem struct {
	content     model.ExtractedContent
	enhanced    model.EnhancedContent
	hasEnhanced bool
}

// progressCounters are the running totals RecordProgress reports, updated
// from multiple worker goroutines without a shared lock.
type progressCounters struct {
	fetched   atomic.Int64
	extracted atomic.Int64
	chunks    atomic.Int64
	errs      atomic.Int64
}

// memoryGovernor throttles the extract workers when the process heap
// approaches the configured ceiling: past 80% occupancy each worker
// sleeps briefly before taking its next item and a GC cycle is hinted,
// so the bounded channels push the slowdown back to the crawler. Memory
// stats are sampled at most every half second across all workers.
type memoryGovernor struct {
	ceiling   int64
	lastCheck atomic.Int64 // unix nanos of the last ReadMemStats
	pressured atomic.Bool
}

const (
	memoryPressureFraction = 0.8
	memoryCheckInterval    = 500 * time.Millisecond
	memoryPressurePause    = 100 * time.Millisecond
)

func newMemoryGovernor(ceiling int64) *memoryGovernor {
	return &memoryGovernor{ceiling: ceiling}
}

func (g *memoryGovernor) throttle() {
	if g.ceiling <= 0 {
		return
	}
	now := time.Now().UnixNano()
	last := g.lastCheck.Load()
	if now-last >= int64(memoryCheckInterval) && g.lastCheck.CompareAndSwap(last, now) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		over := float64(ms.HeapAlloc) > float64(g.ceiling)*memoryPressureFraction
		g.pressured.Store(over)
		if over {
			runtime.GC()
		}
	}
	if g.pressured.Load() {
		time.Sleep(memoryPressurePause)
	}
}

func (p *Pipeline) tokenCounter() tokencount.Counter {
	if p.counter != nil {
		return p.counter
	}
	return tokencount.NewDefaultCounter()
}

func (p *Pipeline) enhanceEnabled() bool {
	e := p.opts.Enhance
	return p.completion != nil && p.completion.IsAvailable() &&
		(e.EnableSummary || e.EnableRewrite || e.EnableMetadata)
}

func (p *Pipeline) workerCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// contentFormatFromContentType maps an HTTP Content-Type onto the closed
// ContentFormat set; an unrecognized or empty type falls back to Auto so
// content.Extract sniffs the body itself.
func contentFormatFromContentType(ct string) model.ContentFormat {
	lower := strings.ToLower(ct)
	switch {
	case strings.Contains(lower, "html"):
		return model.FormatHTML
	case strings.Contains(lower, "markdown"):
		return model.FormatMarkdown
	case strings.Contains(lower, "json"):
		return model.FormatJSON
	case strings.Contains(lower, "xml"):
		return model.FormatXML
	case strings.Contains(lower, "text/plain"):
		return model.FormatPlainText
	default:
		return model.FormatAuto
	}
}

// extractFromCrawl runs extraction on a fetched page, probing the cache
// first and populating it on a miss.
func (p *Pipeline) extractFromCrawl(ctx context.Context, cr model.CrawlResult, rec *events.Recorder) (model.ExtractedContent, error) {
	format := contentFormatFromContentType(cr.ContentType)

	var cacheKey string
	if p.cache != nil {
		cacheKey = cache.Key("extract", cr.URL.String(), string(format))
		if raw, ok := p.cache.Get(cacheKey); ok {
			var cached model.ExtractedContent
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	ec, err := content.Extract(cr.URL, cr.Body, format, cr.Depth, rec)
	if err != nil {
		return ec, err
	}

	p.enrichExtracted(ctx, &ec, cr.Body)

	if p.cache != nil {
		if raw, merr := json.Marshal(ec); merr == nil {
			p.cache.Set(cacheKey, raw, 0)
		}
	}
	return ec, nil
}

// enrichExtracted calls any host-supplied service.ImageToTextService and
// service.WebMetadataExtractor over ec in place. Both are optional
// collaborators: a nil service or a call failure leaves ec unchanged for
// that concern rather than aborting extraction, the same degrade-to-no-op
// contract EnhanceAsync uses.
func (p *Pipeline) enrichExtracted(ctx context.Context, ec *model.ExtractedContent, rawBody []byte) {
	if p.imageToText != nil {
		for i := range ec.Images {
			if ec.Images[i].Alt != "" {
				continue
			}
			desc, err := p.imageToText.ConvertImageToText(ctx, ec.Images[i].URL, service.ImageToTextOptions{
				ExtractionType: service.ImageExtractionDescription,
				MaxTextLength:  200,
			})
			if err == nil {
				ec.Images[i].Description = desc
			}
		}
	}

	if p.webMetadata != nil {
		hostMeta, err := p.webMetadata.ExtractMetadata(ctx, ec.SourceURL.String(), rawBody)
		if err == nil {
			ec.Metadata.HostMetadata = hostMeta
		}
	}
}

// maybeEnhance runs enhancement over ec when it is configured and a
// completion service is wired; it never returns an error since an
// enhancement failure degrades to hasEnhanced=false rather than aborting
// the job.
func (p *Pipeline) maybeEnhance(ctx context.Context, ec model.ExtractedContent, rec *events.Recorder) (model.EnhancedContent, bool) {
	if !p.enhanceEnabled() {
		return model.EnhancedContent{}, false
	}
	enh := enhance.New(p.completion, p.aiResil, rec)
	result, err := enh.EnhanceAsync(ctx, ec, p.opts.Enhance)
	if err != nil || !result.Enhanced {
		return model.EnhancedContent{}, false
	}
	return result, true
}

// chunkSync runs the chunking stage over one piece of content. A strategy
// lookup or chunking failure yields a single synthetic error chunk rather
// than propagating, so the job continues past it.
func (p *Pipeline) chunkSync(ctx context.Context, ec model.ExtractedContent, enhanced model.EnhancedContent, hasEnhanced bool, chunkOpts model.ChunkingOptions) []model.WebContentChunk {
	strategy, err := chunk.CreateStrategy(chunkOpts.Strategy)
	if err != nil {
		return []model.WebContentChunk{syntheticErrorChunk(ec.SourceURL.String(), err)}
	}

	svc := chunk.Services{Embedding: p.embedding, Completion: p.completion, Counter: p.tokenCounter()}
	chunks, err := strategy.Chunk(ctx, ec, chunkOpts, svc)
	if err != nil && len(chunks) == 0 {
		return []model.WebContentChunk{syntheticErrorChunk(ec.SourceURL.String(), err)}
	}

	if hasEnhanced {
		applyEnhancement(chunks, enhanced)
	}
	return chunks
}

func syntheticErrorChunk(sourceURL string, err error) model.WebContentChunk {
	return model.WebContentChunk{
		ChunkID:            uuid.NewString(),
		SourceURL:          sourceURL,
		Strategy:           "Error",
		AdditionalMetadata: map[string]any{"error": err.Error()},
	}
}

func applyEnhancement(chunks []model.WebContentChunk, enhanced model.EnhancedContent) {
	for i := range chunks {
		if chunks[i].AdditionalMetadata == nil {
			chunks[i].AdditionalMetadata = map[string]any{}
		}
		if enhanced.Summary != "" {
			chunks[i].AdditionalMetadata["ai_summary"] = enhanced.Summary
		}
		if enhanced.Rewrite != "" {
			chunks[i].AdditionalMetadata["ai_rewrite"] = enhanced.Rewrite
		}
		if enhanced.AIMetadata != nil {
			chunks[i].AdditionalMetadata["ai_metadata"] = enhanced.AIMetadata
		}
	}
}

func singleResult(ch <-chan model.CrawlResult) model.CrawlResult {
	var last model.CrawlResult
	for r := range ch {
		last = r
	}
	return last
}

// crawlAndExtractSingle fetches one URL with ModeSingle and extracts it,
// shared by ExtractContentAsync and ProcessUrlAsync.
func (p *Pipeline) crawlAndExtractSingle(ctx context.Context, rawURL string, crawlOpts model.CrawlOptions, rec *events.Recorder, jobID string) (model.ExtractedContent, error) {
	seed, err := url.Parse(rawURL)
	if err != nil {
		return model.ExtractedContent{}, &Error{Message: err.Error(), Cause: ErrCauseInvalidURL}
	}

	metaRec := metadata.NewRecorder(jobID)
	co := crawlOpts
	co.Mode = model.ModeSingle
	crawler := crawl.New(co, &metaRec, rec)

	result := singleResult(crawler.Run(ctx, *seed))
	if !result.IsSuccess {
		return model.ExtractedContent{}, &Error{Message: "fetch failed for " + rawURL, Cause: ErrCauseFetchFailed}
	}

	return p.extractFromCrawl(ctx, result, rec)
}

// ExtractContentAsync fetches and extracts a single URL, stopping before
// chunking.
func (p *Pipeline) ExtractContentAsync(ctx context.Context, rawURL string, crawlOpts model.CrawlOptions) (model.ExtractedContent, error) {
	jobID := uuid.NewString()
	rec, _ := events.NewDefaultRecorder(jobID)
	return p.crawlAndExtractSingle(ctx, rawURL, crawlOpts, rec, jobID)
}

// ProcessUrlAsync is the single-URL convenience: it crawls, extracts,
// optionally enhances and chunks one URL synchronously and returns its
// chunks in index order.
func (p *Pipeline) ProcessUrlAsync(ctx context.Context, rawURL string, chunkOpts model.ChunkingOptions) ([]model.WebContentChunk, error) {
	jobID := uuid.NewString()
	rec, _ := events.NewDefaultRecorder(jobID)

	ec, err := p.crawlAndExtractSingle(ctx, rawURL, model.DefaultCrawlOptions(), rec, jobID)
	if err != nil {
		// A per-URL crawl failure (robots disallow, network error, ...)
		// degrades to an empty chunk list rather than a Go error: the
		// failure was already recorded as a ProcessingError event by
		// crawlAndExtractSingle's recorder, and per-URL failures never
		// abort a job. Only a synchronously-detected bad URL is raised.
		if perr, ok := err.(*Error); ok && perr.Cause == ErrCauseFetchFailed {
			return []model.WebContentChunk{}, nil
		}
		return nil, err
	}

	enhanced, hasEnhanced := p.maybeEnhance(ctx, ec, rec)
	rec.RecordStage(events.ChunkingCompleted, rawURL)
	return p.chunkSync(ctx, ec, enhanced, hasEnhanced, chunkOpts), nil
}

// ProcessUrlsBatchAsync runs ProcessUrlAsync over every url concurrently,
// bounded at PipelineOptions.MaxConcurrentRequests. A per-URL failure
// leaves that URL mapped to a nil slice (invalid URL) or an empty slice
// (failed fetch) rather than aborting the batch;
// an error is returned only when every URL in the batch failed.
func (p *Pipeline) ProcessUrlsBatchAsync(ctx context.Context, urls []string, chunkOpts model.ChunkingOptions) (map[string][]model.WebContentChunk, error) {
	results := make(map[string][]model.WebContentChunk, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var failed int
	sem := make(chan struct{}, p.workerCount(p.opts.MaxConcurrentRequests))

	for _, u := range urls {
		u := u
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			chunks, err := p.ProcessUrlAsync(ctx, u, chunkOpts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || len(chunks) == 0 {
				failed++
			}
			if err != nil {
				results[u] = nil
				return
			}
			results[u] = chunks
		}()
	}
	wg.Wait()

	if len(urls) > 0 && failed == len(urls) {
		return results, &Error{Message: "every URL in the batch failed", Cause: ErrCauseFetchFailed}
	}
	return results, nil
}

// ProcessHtmlAsync skips the crawl stage entirely and runs extraction and
// chunking directly over a caller-supplied body. The body is sniffed rather
// than assumed to be HTML: callers hand Markdown and JSON blobs through
// this same entry point.
func (p *Pipeline) ProcessHtmlAsync(ctx context.Context, htmlBody []byte, sourceURL string, chunkOpts model.ChunkingOptions) ([]model.WebContentChunk, error) {
	seed, err := url.Parse(sourceURL)
	if err != nil {
		return nil, &Error{Message: err.Error(), Cause: ErrCauseInvalidURL}
	}

	jobID := uuid.NewString()
	rec, _ := events.NewDefaultRecorder(jobID)

	ec, err := content.Extract(*seed, htmlBody, model.FormatAuto, 0, rec)
	if err != nil {
		return nil, err
	}
	p.enrichExtracted(ctx, &ec, htmlBody)

	enhanced, hasEnhanced := p.maybeEnhance(ctx, ec, rec)
	return p.chunkSync(ctx, ec, enhanced, hasEnhanced, chunkOpts), nil
}

// ProcessWebsiteAsync crawls starting at startURL and streams chunks as
// they are produced through a bounded-channel topology:
// crawl -> bounded -> extract workers -> bounded -> enhance workers ->
// bounded -> chunk workers -> output.
// The returned channel closes once the crawl completes
// and every in-flight item has been chunked, or ctx is canceled. The
// returned Bus lets a caller Subscribe to progress/lifecycle events before
// consuming the stream.
func (p *Pipeline) ProcessWebsiteAsync(ctx context.Context, startURL string, crawlOpts model.CrawlOptions, chunkOpts model.ChunkingOptions) (<-chan model.WebContentChunk, *events.Bus, error) {
	seed, err := url.Parse(startURL)
	if err != nil {
		return nil, nil, &Error{Message: err.Error(), Cause: ErrCauseInvalidURL}
	}

	jobID := uuid.NewString()
	rec, bus := events.NewDefaultRecorder(jobID)
	metaRec := metadata.NewRecorder(jobID)
	crawler := crawl.New(crawlOpts, &metaRec, rec)

	rec.RecordStage(events.CrawlStarted, startURL)
	crawlCh := crawler.Run(ctx, *seed)

	var progress progressCounters

	extractCap := p.opts.ExtractChannelCapacity
	if extractCap <= 0 {
		extractCap = 50
	}
	extractCh := make(chan pipelineItem, extractCap)

	governor := newMemoryGovernor(p.opts.MemoryCeilingBytes)

	extractWorkers := p.workerCount(p.opts.MaxConcurrentRequests * 2)
	var extractWg sync.WaitGroup
	extractWg.Add(extractWorkers)
	for i := 0; i < extractWorkers; i++ {
		go func() {
			defer extractWg.Done()
			for cr := range crawlCh {
				governor.throttle()
				progress.fetched.Add(1)
				if !cr.IsSuccess {
					progress.errs.Add(1)
					continue
				}
				ec, err := p.extractFromCrawl(ctx, cr, rec)
				if err != nil {
					progress.errs.Add(1)
					continue
				}
				progress.extracted.Add(1)
				select {
				case extractCh <- pipelineItem{content: ec}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		extractWg.Wait()
		close(extractCh)
	}()

	enhanceCap := p.opts.EnhanceChannelCapacity
	if enhanceCap <= 0 {
		enhanceCap = 25
	}
	enhanceCh := make(chan pipelineItem, enhanceCap)

	if p.enhanceEnabled() {
		enhanceWorkers := p.workerCount(p.opts.MaxConcurrentRequests)
		var enhanceWg sync.WaitGroup
		enhanceWg.Add(enhanceWorkers)
		for i := 0; i < enhanceWorkers; i++ {
			go func() {
				defer enhanceWg.Done()
				enh := enhance.New(p.completion, p.aiResil, rec)
				for item := range extractCh {
					result, err := enh.EnhanceAsync(ctx, item.content, p.opts.Enhance)
					if err == nil && result.Enhanced {
						item.enhanced = result
						item.hasEnhanced = true
					}
					select {
					case enhanceCh <- item:
					case <-ctx.Done():
						return
					}
				}
			}()
		}
		go func() {
			enhanceWg.Wait()
			close(enhanceCh)
		}()
	} else {
		go func() {
			defer close(enhanceCh)
			for item := range extractCh {
				select {
				case enhanceCh <- item:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	out := make(chan model.WebContentChunk, p.workerCount(p.opts.MaxConcurrentRequests))
	chunkWorkers := runtime.NumCPU()
	var chunkWg sync.WaitGroup
	chunkWg.Add(chunkWorkers)
	for i := 0; i < chunkWorkers; i++ {
		go func() {
			defer chunkWg.Done()
			for item := range enhanceCh {
				chunks := p.chunkSync(ctx, item.content, item.enhanced, item.hasEnhanced, chunkOpts)
				for _, c := range chunks {
					select {
					case out <- c:
						n := progress.chunks.Add(1)
						if n%50 == 0 {
							rec.RecordProgress(model.ProcessingProgress{
								JobID:         jobID,
								URLsFetched:   int(progress.fetched.Load()),
								URLsExtracted: int(progress.extracted.Load()),
								ChunksEmitted: int(n),
								ErrorsSeen:    int(progress.errs.Load()),
								Stage:         "chunk",
								At:            time.Now(),
							})
						}
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	go func() {
		chunkWg.Wait()
		close(out)
		rec.RecordStage(events.ProcessingCompleted, jobID)
	}()

	return out, bus, nil
}
