// Package model holds the data entities shared across the crawl, extract,
// enhance and chunk stages. Entities flow forward only through bounded
// channels and are never mutated after leaving the stage that produced them.
package model

import (
	"net/url"
	"time"
)

// ContentFormat identifies the wire format ExtractedContent was derived from.
type ContentFormat string

const (
	FormatHTML      ContentFormat = "html"
	FormatMarkdown  ContentFormat = "markdown"
	FormatJSON      ContentFormat = "json"
	FormatXML       ContentFormat = "xml"
	FormatPlainText ContentFormat = "plaintext"
	FormatAuto      ContentFormat = "auto"
)

// CrawlMode selects the traversal strategy the crawler uses.
type CrawlMode string

const (
	ModeSingle       CrawlMode = "single"
	ModeSitemap      CrawlMode = "sitemap"
	ModeBreadthFirst CrawlMode = "breadth_first"
	ModeDepthFirst   CrawlMode = "depth_first"
)

// CrawlResult is the output of the fetch stage for one URL.
type CrawlResult struct {
	URL             url.URL
	FinalURL        url.URL
	StatusCode      int
	Headers         map[string]string
	Body            []byte
	ContentType     string
	Encoding        string
	ContentLength   int64
	Depth           int
	ParentURL       string
	DiscoveredLinks []string
	ImageURLs       []string
	FetchedAt       time.Time
	FetchLatency    time.Duration
	IsSuccess       bool
	// ErrorKind is one of the closed error-kind vocabulary
	// ("RobotsDisallowed", "NetworkError", "TimeoutError", ...), set
	// whenever IsSuccess is false so downstream stages and the event bus
	// can report *why* a URL produced no content.
	ErrorKind    string
	ErrorMessage string
	Metadata     map[string]any
	WebMetadata  *HtmlMetadataSnapshot
}

// ImageRef describes an image discovered while extracting content. URL is
// resolved against the source page, so it is always absolute for http(s)
// documents.
type ImageRef struct {
	URL   string
	Alt   string
	Title string
	// Position is the image's ordinal among the document's elements, so
	// images interleave correctly with StructuredElement positions.
	Position int
	// SurroundingText is up to 200 characters of text adjacent to the
	// image in the document, for context when the alt text is missing or
	// unhelpful.
	SurroundingText string
	// Description is populated by a host-supplied service.ImageToTextService
	// when the image carries no Alt text. Empty when no such service is
	// wired or the image already had alt text.
	Description string
}

// LinkRef describes an anchor discovered while extracting content. URL is
// normalized for http(s) targets; fragment, mailto: and tel: hrefs are
// kept as authored and flagged instead.
type LinkRef struct {
	URL  string
	Text string
	// IsInternal reports whether the target stays on the source page's
	// registrable host (a leading "www." label is ignored on both sides).
	IsInternal bool
	// IsAnchor is true for same-page fragment links ("#...").
	IsAnchor bool
	// IsEmail / IsPhone flag mailto: and tel: hrefs.
	IsEmail bool
	IsPhone bool
}

// StructuredElement is one node of the document-order content tree produced
// by the extractor. Children always have Position greater than their parent.
type StructuredElement struct {
	Kind     string // heading, paragraph, code, list_item, table, image, quote
	Level    int    // heading level, 0 for non-headings
	Text     string
	Position int
	Children []StructuredElement
}

// HtmlMetadataSnapshot holds the metadata extracted from an HTML document's
// <head> (title/meta/OpenGraph/Twitter/JSON-LD).
type HtmlMetadataSnapshot struct {
	Title       string
	Description string
	OpenGraph   map[string]string
	Twitter     map[string]string
	JSONLD      map[string]map[string]any // keyed by @type
	// HostMetadata holds whatever a host-supplied service.WebMetadataExtractor
	// returned for this page, kept separate from JSONLD since it need not be
	// JSON-LD shaped (an extractor may delegate to an LLM rather than parse
	// structured data). Nil when no extractor is wired.
	HostMetadata map[string]any
}

// ExtractedContent is the output of the extraction stage.
type ExtractedContent struct {
	SourceURL          url.URL
	Format             ContentFormat
	MainText           string
	StructuredElements []StructuredElement
	Images             []ImageRef
	Links              []LinkRef
	Metadata           HtmlMetadataSnapshot
	Language           string
	QualityScore       float64
	Warnings           []string
	CrawlDepth         int
	ExtractionTimeMs   int64
	ExtractedAt        time.Time
	// RenderedMarkdown is an HTML source's content node rendered to GFM
	// Markdown (internal/mdconvert), populated only when Format is
	// FormatHTML. Enhancement prompts prefer it over raw MainText since it
	// keeps headings, code fences and tables legible to a completion model.
	RenderedMarkdown string
}

// EnhancedContent is the optional output of the AI enhancement stage.
type EnhancedContent struct {
	Extracted  ExtractedContent
	Summary    string
	Rewrite    string
	AIMetadata map[string]any
	Enhanced   bool
}

// WebContentChunk is one unit of text handed to a downstream consumer.
type WebContentChunk struct {
	ChunkID            string
	SourceURL          string
	Content            string
	Position           int
	StartOffset        int
	EndOffset          int
	TokenCount         int
	Strategy           string
	AdditionalMetadata map[string]any
	Oversized          bool
}

// ChunkingOptions configures the chunking strategies and their factory.
type ChunkingOptions struct {
	Strategy           string
	MaxChunkSize       int
	MinChunkSize       int
	OverlapSize        int
	PreserveStructure  bool
	UseTokens          bool
	MaxHeadingCapLevel int
	SemanticThreshold  float64
	MemoryBufferBytes  int
	StrategyParameters map[string]any
}

// DefaultChunkingOptions seeds sane defaults; callers override fields
// individually.
func DefaultChunkingOptions() ChunkingOptions {
	return ChunkingOptions{
		Strategy:           "auto",
		MaxChunkSize:       1000,
		MinChunkSize:       100,
		OverlapSize:        100,
		PreserveStructure:  true,
		UseTokens:          false,
		MaxHeadingCapLevel: 3,
		SemanticThreshold:  0.75,
		MemoryBufferBytes:  1 << 20,
		StrategyParameters: map[string]any{"semantic_merge_threshold": 0.85},
	}
}

// CrawlOptions configures the crawler and its politeness controls.
type CrawlOptions struct {
	Mode                CrawlMode
	MaxDepth            int
	MaxPages            int
	Concurrency         int
	BaseDelay           time.Duration
	Jitter              time.Duration
	RandomSeed          int64
	RetryCount          int
	UserAgent           string
	Timeout             time.Duration
	AllowedHosts        []string
	AllowedPathPrefixes []string
	IncludePatterns     []string
	ExcludePatterns     []string
	RespectRobots       bool
}

// DefaultCrawlOptions seeds polite production defaults.
func DefaultCrawlOptions() CrawlOptions {
	return CrawlOptions{
		Mode:          ModeBreadthFirst,
		MaxDepth:      3,
		MaxPages:      100,
		Concurrency:   10,
		BaseDelay:     time.Second,
		Jitter:        500 * time.Millisecond,
		RandomSeed:    1,
		RetryCount:    3,
		UserAgent:     "ragpipe/1.0",
		Timeout:       10 * time.Second,
		RespectRobots: true,
	}
}

// RewriteStyle selects the tone RewriteAsync targets.
type RewriteStyle string

const (
	StyleFormal    RewriteStyle = "formal"
	StyleCasual    RewriteStyle = "casual"
	StyleTechnical RewriteStyle = "technical"
	StyleSimple    RewriteStyle = "simple"
)

// MetadataSchema selects the extraction schema ExtractMetadataAsync
// prompts for.
type MetadataSchema string

const (
	SchemaGeneral       MetadataSchema = "General"
	SchemaTechnicalDoc  MetadataSchema = "TechnicalDoc"
	SchemaProductManual MetadataSchema = "ProductManual"
	SchemaArticle       MetadataSchema = "Article"
	SchemaCustom        MetadataSchema = "Custom"
)

// EnhanceOptions configures EnhanceAsync and its sub-operations.
type EnhanceOptions struct {
	EnableSummary  bool
	EnableRewrite  bool
	EnableMetadata bool

	SummaryMaxLength int
	SummaryFocus     string
	SummaryLanguage  string

	RewriteStyle RewriteStyle

	MetadataSchema       MetadataSchema
	MetadataCustomPrompt string
}

// DefaultEnhanceOptions seeds defaults; every sub-operation stays off
// until explicitly enabled.
func DefaultEnhanceOptions() EnhanceOptions {
	return EnhanceOptions{
		SummaryMaxLength: 500,
		RewriteStyle:     StyleFormal,
		MetadataSchema:   SchemaGeneral,
	}
}

// PipelineOptions configures façade-level concerns that sit above a single
// crawl/chunk job: worker pool sizing, channel capacities, and the memory
// ceiling the orchestrator watches for backpressure.
type PipelineOptions struct {
	MaxConcurrentRequests  int
	CrawlChannelCapacity   int
	ExtractChannelCapacity int
	EnhanceChannelCapacity int
	MemoryCeilingBytes     int64
	Enhance                EnhanceOptions
}

// DefaultPipelineOptions seeds the channel capacities and worker counts
// the streaming topology defaults to.
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		MaxConcurrentRequests:  10,
		CrawlChannelCapacity:   100,
		ExtractChannelCapacity: 50,
		EnhanceChannelCapacity: 25,
		MemoryCeilingBytes:     1 << 30,
	}
}

// ProcessingProgress is emitted on the event bus as the pipeline runs.
type ProcessingProgress struct {
	JobID          string
	URLsDiscovered int
	URLsFetched    int
	URLsExtracted  int
	ChunksEmitted  int
	ErrorsSeen     int
	Stage          string
	At             time.Time
}
