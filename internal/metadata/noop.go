package metadata

import "time"

// NoopSink is a MetadataSink that discards every record. It exists for
// callers (mostly tests) that need to satisfy the interface without
// caring about what gets recorded.
type NoopSink struct{}

func (NoopSink) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
}

func (NoopSink) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute) {
}
