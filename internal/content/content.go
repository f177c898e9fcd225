// Package content is the extraction stage: it recovers main text,
// structured elements, metadata, images and links from a page body,
// dispatching on content type (Html/Markdown/Json/Xml/PlainText) and
// sniffing the type when the caller asks for Auto.
//
// HTML extraction layers internal/extractor.DomExtractor's content
// isolation (semantic container -> known doc selectors -> text-density
// heuristic) with go-readability as the fallback when no layer finds a
// container.
package content

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wovenweb/ragpipe/internal/events"
	"github.com/wovenweb/ragpipe/model"
)

// Extract dispatches to the format-specific extractor and fills in the
// fields every format shares (SourceURL, Format, CrawlDepth, extraction
// timing, quality score, language).
func Extract(sourceURL url.URL, body []byte, format model.ContentFormat, crawlDepth int, rec *events.Recorder) (model.ExtractedContent, error) {
	start := time.Now()

	if format == model.FormatAuto || format == "" {
		format = Sniff(body)
	}

	if !utf8.Valid(body) {
		err := &Error{Message: "body is not valid UTF-8", Retryable: false, Cause: ErrCauseDecodeFailure}
		if rec != nil {
			rec.RecordError("content", sourceURL.String(), "ExtractionError", err.Error())
		}
		return model.ExtractedContent{}, err
	}

	var (
		ec  model.ExtractedContent
		err error
	)

	switch format {
	case model.FormatHTML:
		ec, err = extractHTML(sourceURL, body)
	case model.FormatMarkdown:
		ec, err = extractMarkdown(sourceURL, body)
	case model.FormatJSON:
		ec, err = extractJSON(sourceURL, body)
	case model.FormatXML:
		ec, err = extractXML(sourceURL, body)
	default:
		ec, err = extractPlainText(sourceURL, body)
	}
	if err != nil {
		if rec != nil {
			rec.RecordError("content", sourceURL.String(), "ExtractionError", err.Error())
		}
		return model.ExtractedContent{}, err
	}

	ec.SourceURL = sourceURL
	ec.Format = format
	ec.CrawlDepth = crawlDepth
	ec.Language = DetectLanguage(ec.MainText)
	ec.QualityScore = QualityScore(ec)
	ec.ExtractedAt = time.Now()
	ec.ExtractionTimeMs = ec.ExtractedAt.Sub(start).Milliseconds()

	if rec != nil {
		rec.RecordStage(events.ExtractionCompleted, sourceURL.String())
	}
	return ec, nil
}

// Sniff guesses a body's format from its leading bytes.
func Sniff(body []byte) model.ContentFormat {
	trimmed := strings.TrimSpace(string(firstN(body, 512)))
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html"):
		return model.FormatHTML
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return model.FormatJSON
	case strings.HasPrefix(lower, "<?xml") || strings.HasPrefix(lower, "<root>"):
		return model.FormatXML
	case looksLikeMarkdown(trimmed):
		return model.FormatMarkdown
	default:
		return model.FormatPlainText
	}
}

func looksLikeMarkdown(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "#") || strings.HasPrefix(l, "```") ||
			strings.HasPrefix(l, "* ") || strings.HasPrefix(l, "- ") {
			return true
		}
	}
	return false
}

func firstN(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
