// Package enhance provides optional AI-assisted summarization, rewriting,
// and metadata extraction layered on top of a host-supplied
// service.TextCompletionService. Every operation degrades to a no-op
// (EnhancedContent.Enhanced == false) when no completion service is wired,
// the same "optional collaborator" contract the Semantic and Intelligent
// chunking strategies use.
package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/wovenweb/ragpipe/internal/events"
	"github.com/wovenweb/ragpipe/internal/resilience"
	"github.com/wovenweb/ragpipe/model"
	"github.com/wovenweb/ragpipe/pkg/failure"
	"github.com/wovenweb/ragpipe/service"
)

// pool names the resilience logical pool enhancement calls run under,
// alongside the crawler's "fetcher" pool.
const pool = "ai"

// Enhancer drives the enhancement stage. Build one per pipeline (or per
// job, if a job needs its own resilience policy) and reuse it across every
// EnhancedContent it produces; the completion client is treated as
// thread-safe by contract.
type Enhancer struct {
	completion service.TextCompletionService
	resil      *resilience.Resilience
	rec        *events.Recorder
}

// New builds an Enhancer. completion may be nil, in which case every
// operation is a documented no-op.
func New(completion service.TextCompletionService, resil *resilience.Resilience, rec *events.Recorder) *Enhancer {
	return &Enhancer{completion: completion, resil: resil, rec: rec}
}

// sourceText prefers the Markdown rendering of HTML content over raw
// MainText, so headings/code/tables stay legible in the prompt.
func sourceText(content model.ExtractedContent) string {
	if content.Format == model.FormatHTML && strings.TrimSpace(content.RenderedMarkdown) != "" {
		return content.RenderedMarkdown
	}
	return content.MainText
}

func (e *Enhancer) complete(ctx context.Context, prompt string, copts service.CompletionOptions) (string, error) {
	if e.completion == nil || !e.completion.IsAvailable() {
		return "", &Error{Message: "no completion service available", Cause: ErrCauseUnavailable}
	}
	call := func(cctx context.Context) (string, failure.ClassifiedError) {
		out, err := e.completion.Complete(cctx, prompt, copts)
		if err != nil {
			return "", &Error{Message: err.Error(), Retryable: true, Cause: ErrCauseUpstream}
		}
		return out, nil
	}
	if e.resil == nil {
		out, cerr := call(ctx)
		if cerr != nil {
			return "", cerr
		}
		return out, nil
	}
	return resilience.Execute(ctx, e.resil, pool, call)
}

// SummarizeAsync produces a focused summary of content capped at
// opts.SummaryMaxLength characters.
func (e *Enhancer) SummarizeAsync(ctx context.Context, content model.ExtractedContent, opts model.EnhanceOptions) (string, error) {
	maxLen := opts.SummaryMaxLength
	if maxLen <= 0 {
		maxLen = 500
	}
	focus := "the main points"
	if opts.SummaryFocus != "" {
		focus = opts.SummaryFocus
	}
	lang := ""
	if opts.SummaryLanguage != "" {
		lang = fmt.Sprintf(" Respond in %s.", opts.SummaryLanguage)
	}
	prompt := fmt.Sprintf(
		"Summarize the following document in at most %d characters, focusing on %s. "+
			"Respond with plain text only, no preamble.%s\n\nDocument:\n%s",
		maxLen, focus, lang, sourceText(content),
	)
	out, err := e.complete(ctx, prompt, service.CompletionOptions{Temperature: 0.2, MaxTokens: maxLen})
	if err != nil {
		if e.rec != nil {
			e.rec.RecordError("enhance", content.SourceURL.String(), "AiSummaryError", err.Error())
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RewriteAsync rewrites content in the requested style.
func (e *Enhancer) RewriteAsync(ctx context.Context, content model.ExtractedContent, opts model.EnhanceOptions) (string, error) {
	style := opts.RewriteStyle
	if style == "" {
		style = model.StyleFormal
	}
	prompt := fmt.Sprintf(
		"Rewrite the following document in a %s style, preserving all factual content and structure. "+
			"Respond with the rewritten document only, no preamble.\n\nDocument:\n%s",
		style, sourceText(content),
	)
	out, err := e.complete(ctx, prompt, service.CompletionOptions{Temperature: 0.3})
	if err != nil {
		if e.rec != nil {
			e.rec.RecordError("enhance", content.SourceURL.String(), "AiRewriteError", err.Error())
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ExtractMetadataAsync prompts for a schema-specific JSON object, retrying
// once with a stricter "JSON only" instruction on parse failure before
// surfacing AiParseError.
func (e *Enhancer) ExtractMetadataAsync(ctx context.Context, content model.ExtractedContent, opts model.EnhanceOptions) (map[string]any, error) {
	schema := opts.MetadataSchema
	if schema == "" {
		schema = model.SchemaGeneral
	}
	prompt := metadataPrompt(content, schema, opts.MetadataCustomPrompt, false)
	out, err := e.complete(ctx, prompt, service.CompletionOptions{Temperature: 0.1, ResponseFormat: "json"})
	if err != nil {
		if e.rec != nil {
			e.rec.RecordError("enhance", content.SourceURL.String(), "AiMetadataError", err.Error())
		}
		return nil, err
	}

	parsed, perr := parseJSONObject(out)
	if perr == nil {
		return parsed, nil
	}

	strict := metadataPrompt(content, schema, opts.MetadataCustomPrompt, true)
	out2, err := e.complete(ctx, strict, service.CompletionOptions{Temperature: 0.1, ResponseFormat: "json"})
	if err != nil {
		if e.rec != nil {
			e.rec.RecordError("enhance", content.SourceURL.String(), "AiMetadataError", err.Error())
		}
		return nil, err
	}
	parsed, perr = parseJSONObject(out2)
	if perr != nil {
		aerr := &Error{Message: "completion did not return valid JSON after retry: " + perr.Error(), Cause: ErrCauseAiParse}
		if e.rec != nil {
			e.rec.RecordError("enhance", content.SourceURL.String(), string(ErrCauseAiParse), aerr.Error())
		}
		return nil, aerr
	}
	return parsed, nil
}

func metadataPrompt(content model.ExtractedContent, schema model.MetadataSchema, customPrompt string, strict bool) string {
	schemaHint := map[model.MetadataSchema]string{
		model.SchemaGeneral:       `{"title": string, "summary": string, "topics": [string], "entities": [string]}`,
		model.SchemaTechnicalDoc:  `{"title": string, "apis": [string], "prerequisites": [string], "version": string}`,
		model.SchemaProductManual: `{"product": string, "steps": [string], "warnings": [string]}`,
		model.SchemaArticle:       `{"title": string, "author": string, "publishDate": string, "summary": string}`,
		model.SchemaCustom:        `{}`,
	}[schema]

	var b strings.Builder
	fmt.Fprintf(&b, "Extract structured metadata from the following document as a JSON object shaped exactly as %s.", schemaHint)
	if customPrompt != "" {
		fmt.Fprintf(&b, " %s", customPrompt)
	}
	if strict {
		b.WriteString(" Respond with JSON only: no markdown fences, no commentary, no leading or trailing text.")
	} else {
		b.WriteString(" Respond with a JSON object only.")
	}
	fmt.Fprintf(&b, "\n\nDocument:\n%s", sourceText(content))
	return b.String()
}

// parseJSONObject tolerates a response wrapped in a Markdown code fence,
// which completion models commonly emit despite being asked not to.
func parseJSONObject(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var out map[string]any
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnhanceAsync runs the sub-operations opts enables concurrently and
// aggregates them into an EnhancedContent. A sub-operation
// failure is recorded but does not fail the whole call; Enhanced is true as
// long as at least one sub-operation succeeded.
func (e *Enhancer) EnhanceAsync(ctx context.Context, content model.ExtractedContent, opts model.EnhanceOptions) (model.EnhancedContent, error) {
	result := model.EnhancedContent{Extracted: content}
	if e.completion == nil || !e.completion.IsAvailable() ||
		(!opts.EnableSummary && !opts.EnableRewrite && !opts.EnableMetadata) {
		return result, nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	if opts.EnableSummary {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := e.SummarizeAsync(ctx, content, opts)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				result.Summary = summary
				result.Enhanced = true
			}
		}()
	}
	if opts.EnableRewrite {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rewrite, err := e.RewriteAsync(ctx, content, opts)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				result.Rewrite = rewrite
				result.Enhanced = true
			}
		}()
	}
	if opts.EnableMetadata {
		wg.Add(1)
		go func() {
			defer wg.Done()
			md, err := e.ExtractMetadataAsync(ctx, content, opts)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				result.AIMetadata = md
				result.Enhanced = true
			}
		}()
	}

	wg.Wait()
	return result, nil
}
