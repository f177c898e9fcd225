// Package service declares the interfaces a host application implements to
// plug external capabilities (text completion, embeddings, image
// description, custom metadata extraction) into the pipeline. The pipeline
// never constructs these itself; it only calls them when a host supplies
// one, and every operation degrades to a no-op when the service is absent
// or reports itself unavailable.
package service

import "context"

// CompletionOptions carries the per-call knobs a completion request
// accepts. The zero value is usable; implementations apply their own
// defaults for unset fields.
type CompletionOptions struct {
	// MaxTokens bounds the response length; 0 means implementation default.
	MaxTokens int

	// Temperature controls sampling randomness. The pipeline keeps it at or
	// below 0.3 whenever it expects structured JSON output back.
	Temperature float64

	// Model optionally names a specific model; empty selects the
	// implementation's default.
	Model string

	// SystemPrompt optionally prepends a system-level instruction.
	SystemPrompt string

	// ResponseFormat is "json" when the caller will parse the response as a
	// JSON document, empty for free text. Implementations that support
	// constrained decoding should honor it; others may ignore it.
	ResponseFormat string
}

// TextCompletionService backs the Intelligent chunking strategy and the
// enhancement service's summarize/rewrite/metadata operations.
type TextCompletionService interface {
	// Complete sends prompt and returns the model's full response text.
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)

	// CompleteStream sends prompt and returns a channel of response
	// fragments, closed when the response is complete or ctx is canceled.
	// The pipeline core never streams; the contract exists for hosts that
	// surface partial output in their own UIs.
	CompleteStream(ctx context.Context, prompt string, opts CompletionOptions) (<-chan string, error)

	// IsAvailable reports whether the backing model can currently serve
	// requests. Callers skip optional AI work when it returns false.
	IsAvailable() bool
}

// TextEmbeddingService backs the Semantic chunking strategy.
type TextEmbeddingService interface {
	// GetEmbedding returns the vector for a single text.
	GetEmbedding(ctx context.Context, text string) ([]float64, error)

	// GetEmbeddings returns one vector per input text, in the same order.
	// Callers batch at most 32 texts per call.
	GetEmbeddings(ctx context.Context, texts []string) ([][]float64, error)

	// EmbeddingDimension reports the length of the vectors GetEmbedding
	// returns.
	EmbeddingDimension() int

	// MaxTokens reports the longest input the model accepts; callers
	// truncate longer texts before embedding.
	MaxTokens() int
}

// ImageExtractionType selects what an ImageToTextService should produce.
type ImageExtractionType string

const (
	ImageExtractionOCR         ImageExtractionType = "ocr"
	ImageExtractionDescription ImageExtractionType = "description"
	ImageExtractionDetailed    ImageExtractionType = "detailed"
)

// ImageToTextOptions carries the per-call knobs an image-to-text request
// accepts. The zero value asks for a plain description.
type ImageToTextOptions struct {
	ExtractionType ImageExtractionType
	Language       string
	ContextPrompt  string
	MaxTextLength  int
}

// ImageToTextService optionally describes images discovered during
// extraction so their alt text can be folded into the extracted content.
type ImageToTextService interface {
	ConvertImageToText(ctx context.Context, imageURL string, opts ImageToTextOptions) (string, error)
}

// WebMetadataExtractor lets a host override or supplement the built-in
// HTML metadata snapshot with site-specific logic, possibly delegating to
// a completion service internally.
type WebMetadataExtractor interface {
	ExtractMetadata(ctx context.Context, sourceURL string, htmlBody []byte) (map[string]any, error)
}
