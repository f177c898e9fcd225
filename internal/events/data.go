package events

import "time"

// Type names one of the pipeline's published event kinds.
type Type string

const (
	CrawlStarted        Type = "crawl_started"
	PageFetched         Type = "page_fetched"
	ExtractionCompleted Type = "extraction_completed"
	ChunkingCompleted   Type = "chunking_completed"
	Progress            Type = "processing_progress"
	ProcessingErrorEvt  Type = "processing_error"
	ProcessingCompleted Type = "processing_completed"
)

// Event is the envelope delivered to every subscriber. Payload carries the
// type-specific detail (model.ProcessingProgress, an error summary, a
// fetched URL, ...); subscribers type-assert what they care about.
type Event struct {
	Type    Type
	JobID   string
	At      time.Time
	Payload any
}

// ErrorPayload is the Payload of a ProcessingErrorEvt event.
type ErrorPayload struct {
	SourceURL string
	Stage     string
	Kind      string
	Message   string
}

// FetchPayload is the Payload of a PageFetched event.
type FetchPayload struct {
	URL          string
	StatusCode   int
	Depth        int
	ResponseTime time.Duration
}
