package events

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Recorder is the pipeline-wide observability sink. It mirrors
// internal/metadata.Recorder's fetch/error record shape but emits each
// record through a zerolog.Logger in addition to fanning it out onto the
// public Bus, so a host application gets both structured logs and typed
// events from the same call site.
type Recorder struct {
	log   zerolog.Logger
	bus   *Bus
	jobID string
}

// NewRecorder builds a Recorder bound to jobID that logs through logger and
// publishes onto bus. Either argument may be the zero value: a zero Logger
// falls back to the global zerolog logger, and a nil bus silently skips
// publishing (useful for ExtractContentAsync-only callers that never
// subscribe to progress events).
func NewRecorder(jobID string, logger zerolog.Logger, bus *Bus) *Recorder {
	return &Recorder{log: logger, bus: bus, jobID: jobID}
}

// NewDefaultRecorder wires the package-global zerolog logger and a fresh
// Bus, matching what ProcessUrlAsync uses when the caller supplies none.
func NewDefaultRecorder(jobID string) (*Recorder, *Bus) {
	bus := NewBus()
	return &Recorder{log: log.Logger, bus: bus, jobID: jobID}, bus
}

// RecordFetch logs a successful or failed page fetch at Debug level and
// publishes a PageFetched event.
func (r *Recorder) RecordFetch(url string, statusCode, depth int, responseTime time.Duration) {
	r.log.Debug().
		Str("job_id", r.jobID).
		Str("url", url).
		Int("status", statusCode).
		Int("depth", depth).
		Dur("response_time", responseTime).
		Msg("page fetched")

	r.publish(PageFetched, FetchPayload{
		URL:          url,
		StatusCode:   statusCode,
		Depth:        depth,
		ResponseTime: responseTime,
	})
}

// RecordError logs a per-URL or per-stage failure at Warn level (Error
// level for InternalError kinds) and publishes a ProcessingErrorEvt. This
// never aborts the job; the caller continues past it.
func (r *Recorder) RecordError(stage, sourceURL, kind, message string) {
	ev := r.log.Warn()
	if kind == "InternalError" {
		ev = r.log.Error()
	}
	ev.Str("job_id", r.jobID).
		Str("stage", stage).
		Str("url", sourceURL).
		Str("kind", kind).
		Str("message", message).
		Msg("processing error")

	r.publish(ProcessingErrorEvt, ErrorPayload{
		SourceURL: sourceURL,
		Stage:     stage,
		Kind:      kind,
		Message:   message,
	})
}

// RecordStage logs a stage transition and publishes the matching lifecycle
// event (CrawlStarted, ExtractionCompleted, ChunkingCompleted,
// ProcessingCompleted).
func (r *Recorder) RecordStage(t Type, detail string) {
	r.log.Info().Str("job_id", r.jobID).Str("detail", detail).Msg(string(t))
	r.publish(t, detail)
}

// RecordProgress publishes a ProcessingProgress snapshot at Debug level.
func (r *Recorder) RecordProgress(payload any) {
	r.log.Debug().Str("job_id", r.jobID).Msg("progress")
	r.publish(Progress, payload)
}

func (r *Recorder) publish(t Type, payload any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(Event{Type: t, JobID: r.jobID, At: time.Now(), Payload: payload})
}

// Bus returns the bus this recorder publishes to, so a façade caller can
// Subscribe before starting a job.
func (r *Recorder) Bus() *Bus {
	return r.bus
}
