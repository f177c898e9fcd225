package metadata

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// Recorder implements MetadataSink and CrawlFinalizer (NoopSink is the
// discarding MetadataSink).
// It keeps a small in-memory audit trail for post-run inspection (tests
// read it back directly) and mirrors every record through zerolog so a
// live crawl is debuggable without waiting for terminal stats.
type Recorder struct {
	mu sync.Mutex

	crawlID string
	log     zerolog.Logger

	fetches []FetchEvent
	errors  []ErrorRecord
	final   *crawlStats
}

// NewRecorder binds a Recorder to crawlID, logging through the global
// zerolog logger. Callers needing a different logger use
// NewRecorderWithLogger.
func NewRecorder(crawlID string) Recorder {
	return Recorder{
		crawlID: crawlID,
		log:     log.Logger.With().Str("crawl_id", crawlID).Logger(),
	}
}

// NewRecorderWithLogger is NewRecorder with an explicit zerolog.Logger,
// for callers that want crawl records routed somewhere other than the
// global logger (tests capturing output, a per-job sink, etc).
func NewRecorderWithLogger(crawlID string, logger zerolog.Logger) Recorder {
	return Recorder{
		crawlID: crawlID,
		log:     logger.With().Str("crawl_id", crawlID).Logger(),
	}
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	ev := FetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		duration:    duration,
		contentType: contentType,
		retryCount:  retryCount,
		crawlDepth:  crawlDepth,
	}

	r.mu.Lock()
	r.fetches = append(r.fetches, ev)
	r.mu.Unlock()

	r.log.Info().
		Str("url", fetchUrl).
		Int("http_status", httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Int("crawl_depth", crawlDepth).
		Msg("page fetched")
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute) {
	rec := ErrorRecord{
		packageName: packageName,
		action:      action,
		cause:       cause,
		errorString: errorString,
		observedAt:  observedAt,
		attrs:       attrs,
	}

	r.mu.Lock()
	r.errors = append(r.errors, rec)
	r.mu.Unlock()

	evt := r.log.Error().
		Str("package", packageName).
		Str("action", action).
		Int("cause", int(cause)).
		Time("observed_at", observedAt)
	for _, a := range attrs {
		evt = evt.Str(string(a.Key), a.Value)
	}
	evt.Msg(errorString)
}

func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, duration time.Duration) {
	stats := crawlStats{
		totalPages:  totalPages,
		totalErrors: totalErrors,
		durationMs:  duration.Milliseconds(),
	}

	r.mu.Lock()
	r.final = &stats
	r.mu.Unlock()

	r.log.Info().
		Int("total_pages", totalPages).
		Int("total_errors", totalErrors).
		Dur("duration", duration).
		Msg("crawl finished")
}

// Fetches returns a snapshot of every RecordFetch call observed so far.
func (r *Recorder) Fetches() []FetchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FetchEvent, len(r.fetches))
	copy(out, r.fetches)
	return out
}

// Errors returns a snapshot of every RecordError call observed so far.
func (r *Recorder) Errors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorRecord, len(r.errors))
	copy(out, r.errors)
	return out
}

// FinalStats returns the terminal crawl summary, or zero values and
// ok=false if the crawl has not finished yet.
func (r *Recorder) FinalStats() (totalPages, totalErrors int, duration time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final == nil {
		return 0, 0, 0, false
	}
	return r.final.totalPages, r.final.totalErrors, time.Duration(r.final.durationMs) * time.Millisecond, true
}
