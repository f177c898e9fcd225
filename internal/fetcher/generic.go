package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wovenweb/ragpipe/internal/metadata"
	"github.com/wovenweb/ragpipe/pkg/failure"
	"github.com/wovenweb/ragpipe/pkg/retry"
)

/*
GenericFetcher is the crawler's page fetcher: retry/header/status
handling with no Content-Type restriction. A site's sitemap.xml, JSON
endpoints, and plain-text pages are all legitimate crawl targets that
content.Extract knows how to sniff and parse, so non-HTML responses
flow through rather than being discarded at the HTTP boundary.
*/
type GenericFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
}

func NewGenericFetcher(metadataSink metadata.MetadataSink) GenericFetcher {
	return GenericFetcher{
		metadataSink: metadataSink,
		httpClient:   &http.Client{},
	}
}

func (g *GenericFetcher) Init(httpClient *http.Client) {
	g.httpClient = httpClient
}

func (g *GenericFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "GenericFetcher.Fetch"
	startTime := time.Now()

	result, err := g.fetchWithRetry(ctx, fetchParam.fetchUrl, fetchParam.userAgent, retryParam)

	duration := time.Since(startTime)

	var statusCode int
	var contentType string
	var retryCount int

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			retryCount = retryParam.MaxAttempts
		}
	} else {
		statusCode = result.Code()
		contentType = g.extractContentType(result.Headers())
	}

	g.metadataSink.RecordFetch(
		fetchParam.fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		retryCount,
		crawlDepth,
	)

	if err != nil {
		var fetchError *FetchError
		if errors.As(err, &fetchError) {
			g.metadataSink.RecordError(
				time.Now(),
				"fetcher",
				callerMethod,
				mapFetchErrorToMetadataCause(fetchError),
				err.Error(),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, fetchParam.fetchUrl.String()),
				},
			)
		}
		return FetchResult{}, err
	}

	return result, nil
}

func (g *GenericFetcher) fetchWithRetry(ctx context.Context, fetchUrl url.URL, userAgent string, retryParam retry.RetryParam) (FetchResult, failure.ClassifiedError) {
	var lastFetchErr *FetchError
	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		res, err := g.performFetch(ctx, fetchUrl, userAgent)
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			lastFetchErr = fetchErr
		}
		return res, err
	}

	result := retry.Retry(retryParam, fetchTask)
	if result.IsFailure() {
		if lastFetchErr != nil {
			return FetchResult{}, lastFetchErr
		}
		return FetchResult{}, result.Err()
	}

	return result.Value(), nil
}

func (g *GenericFetcher) performFetch(ctx context.Context, fetchUrl url.URL, userAgent string) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	headers := genericRequestHeaders(userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}
	case resp.StatusCode == 429:
		return FetchResult{}, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}
	case resp.StatusCode == 403:
		return FetchResult{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("redirect error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	return FetchResult{
		url:       fetchUrl,
		body:      body,
		fetchedAt: time.Now(),
		meta: ResponseMeta{
			statusCode:          resp.StatusCode,
			transferredSizeByte: uint64(len(body)),
			responseHeaders:     responseHeaders,
		},
	}, nil
}

// Head issues a HEAD request for fetchUrl and returns the response
// metadata (status, headers) with an empty body. Useful for probing
// Content-Type or liveness without transferring the page.
func (g *GenericFetcher) Head(ctx context.Context, fetchUrl url.URL, userAgent string) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	for key, value := range genericRequestHeaders(userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	return FetchResult{
		url:       fetchUrl,
		fetchedAt: time.Now(),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: responseHeaders,
		},
	}, nil
}

func (g *GenericFetcher) extractContentType(headers map[string]string) string {
	if ct, ok := headers["Content-Type"]; ok {
		return ct
	}
	return ""
}

func genericRequestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": "gzip, deflate, br",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}
