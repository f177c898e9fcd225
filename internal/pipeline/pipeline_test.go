package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wovenweb/ragpipe/internal/pipeline"
	"github.com/wovenweb/ragpipe/model"
	"github.com/wovenweb/ragpipe/service"
)

const sampleHTML = `<!doctype html>
<html><head><title>Doc</title></head>
<body>
<h1>Heading</h1>
<p>First paragraph of real content, long enough to survive extraction.</p>
<p>Second paragraph of real content, also long enough to survive.</p>
<img src="/photo.png">
</body></html>`

func TestProcessHtmlAsync_ReturnsChunks(t *testing.T) {
	p := pipeline.New(model.DefaultPipelineOptions())
	opts := model.DefaultChunkingOptions()
	opts.Strategy = "paragraph"

	chunks, err := p.ProcessHtmlAsync(context.Background(), []byte(sampleHTML), "https://example.com/doc", opts)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "https://example.com/doc", c.SourceURL)
	}
}

// fakeImageToText always returns a fixed description, letting the test
// assert enrichExtracted actually invokes the wired service rather than
// leaving it decorative.
type fakeImageToText struct{ calls int }

func (f *fakeImageToText) ConvertImageToText(ctx context.Context, imageURL string, opts service.ImageToTextOptions) (string, error) {
	f.calls++
	return "a photo", nil
}

type fakeWebMetadata struct{ calls int }

func (f *fakeWebMetadata) ExtractMetadata(ctx context.Context, sourceURL string, htmlBody []byte) (map[string]any, error) {
	f.calls++
	return map[string]any{"custom": "value"}, nil
}

func TestProcessHtmlAsync_WiresImageToTextAndWebMetadataServices(t *testing.T) {
	imgSvc := &fakeImageToText{}
	metaSvc := &fakeWebMetadata{}
	p := pipeline.New(model.DefaultPipelineOptions(),
		pipeline.WithImageToTextService(imgSvc),
		pipeline.WithWebMetadataExtractor(metaSvc),
	)
	opts := model.DefaultChunkingOptions()
	opts.Strategy = "paragraph"

	_, err := p.ProcessHtmlAsync(context.Background(), []byte(sampleHTML), "https://example.com/doc2", opts)
	require.NoError(t, err)

	assert.Equal(t, 1, imgSvc.calls, "the page's alt-less <img> should be described exactly once")
	assert.Equal(t, 1, metaSvc.calls, "the host metadata extractor should run exactly once per page")
}

// TestProcessHtmlAsync_SmartSplitsOnHeadings drives the Smart strategy
// end-to-end: every top-level heading opens a fresh chunk and the chunk
// carries its ancestor-heading path in metadata.
func TestProcessHtmlAsync_SmartSplitsOnHeadings(t *testing.T) {
	const sectioned = `<!doctype html>
<html><head><title>Sections</title></head>
<body>
<h1>Section Alpha</h1>
<p>The first section body is a full paragraph of real prose, long enough for
content isolation to keep it and for the chunker to treat it as substance.</p>
<h1>Section Beta</h1>
<p>The second section body is another full paragraph of real prose, also long
enough to survive extraction and land in its own chunk.</p>
</body></html>`

	p := pipeline.New(model.DefaultPipelineOptions())
	opts := model.DefaultChunkingOptions()
	opts.Strategy = "smart"
	opts.MaxChunkSize = 200
	opts.MinChunkSize = 0
	opts.OverlapSize = 0

	chunks, err := p.ProcessHtmlAsync(context.Background(), []byte(sectioned), "https://example.com/sections", opts)
	require.NoError(t, err)
	require.Len(t, chunks, 2, "each h1 should open its own chunk")

	assert.Contains(t, chunks[0].Content, "Section Alpha")
	assert.Contains(t, chunks[0].Content, "first section body")
	assert.Contains(t, chunks[1].Content, "Section Beta")
	assert.Contains(t, chunks[1].Content, "second section body")

	assert.Equal(t, []string{"Section Alpha"}, chunks[0].AdditionalMetadata["heading_path"])
	assert.Equal(t, []string{"Section Beta"}, chunks[1].AdditionalMetadata["heading_path"])
}

// TestProcessHtmlAsync_MarkdownParagraphsChunkIndividually feeds a
// Markdown body through the sniffing entry point: the heading stays out of
// the paragraph stream, so a tight max size yields exactly one chunk per
// paragraph.
func TestProcessHtmlAsync_MarkdownParagraphsChunkIndividually(t *testing.T) {
	body := []byte("# Title\n\nPara one.\n\nPara two.\n\nPara three.")

	p := pipeline.New(model.DefaultPipelineOptions())
	opts := model.DefaultChunkingOptions()
	opts.Strategy = "paragraph"
	opts.MaxChunkSize = 15
	opts.MinChunkSize = 0
	opts.OverlapSize = 0

	chunks, err := p.ProcessHtmlAsync(context.Background(), body, "file:///t.md", opts)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Para one.", chunks[0].Content)
	assert.Equal(t, "Para two.", chunks[1].Content)
	assert.Equal(t, "Para three.", chunks[2].Content)
}

func TestProcessUrlAsync_InvalidURLReturnsError(t *testing.T) {
	p := pipeline.New(model.DefaultPipelineOptions())
	_, err := p.ProcessUrlAsync(context.Background(), "://not-a-url", model.DefaultChunkingOptions())
	assert.Error(t, err)
}

func TestProcessUrlAsync_FetchFailureYieldsEmptyChunksNotError(t *testing.T) {
	p := pipeline.New(model.DefaultPipelineOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Port 1 on loopback refuses connections immediately: the crawl fails
	// without ever reaching the network, so this is deterministic offline.
	chunks, err := p.ProcessUrlAsync(ctx, "http://127.0.0.1:1/", model.DefaultChunkingOptions())
	require.NoError(t, err, "a per-URL crawl failure must degrade to an empty chunk list, not an error")
	assert.Empty(t, chunks)
}

func TestProcessWebsiteAsync_InvalidURLReturnsError(t *testing.T) {
	p := pipeline.New(model.DefaultPipelineOptions())
	_, _, err := p.ProcessWebsiteAsync(context.Background(), "://bad", model.DefaultCrawlOptions(), model.DefaultChunkingOptions())
	assert.Error(t, err)
}
