// Package cli is the thin cobra front-end over internal/pipeline: it
// parses crawl/chunk/enhancement flags into the façade's option structs,
// runs ProcessWebsiteAsync, and streams the resulting chunks to stdout as
// newline-delimited JSON. One flag set on a single root command, no
// subcommands.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/wovenweb/ragpipe/internal/build"
	"github.com/wovenweb/ragpipe/internal/events"
	"github.com/wovenweb/ragpipe/internal/pipeline"
	"github.com/wovenweb/ragpipe/model"
)

var (
	seedURL        string
	maxDepth       int
	maxPages       int
	concurrency    int
	userAgent      string
	timeout        time.Duration
	baseDelay      time.Duration
	jitter         time.Duration
	respectRobots  bool
	crawlModeFlag  string
	allowedHosts   []string

	chunkStrategy string
	maxChunkSize  int
	minChunkSize  int
	overlapSize   int
	useTokens     bool

	enableSummary  bool
	enableRewrite  bool
	enableMetadata bool

	quiet bool
)

var rootCmd = &cobra.Command{
	Use:     "ragpipe",
	Version: build.FullVersion(),
	Short:   "A streaming web-to-RAG-chunk pipeline.",
	Long: `ragpipe crawls a website (or a single URL), extracts and optionally
AI-enhances its content, and chunks it into retrieval-ready units, emitting
one JSON object per chunk to stdout as they become available.`,
	RunE: runRoot,
}

// Execute runs the root command (flags are registered in init) and exits
// with status 1 on error. It is called by cmd/ragpipe's main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&seedURL, "seed-url", "", "starting URL to crawl (required)")
	rootCmd.Flags().StringVar(&crawlModeFlag, "mode", "breadth_first", "crawl mode: single, sitemap, breadth_first, depth_first")
	rootCmd.Flags().IntVar(&maxDepth, "max-depth", 3, "maximum link depth from the seed URL")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", 100, "maximum number of pages to fetch (0 for unlimited)")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 10, "number of concurrent fetch workers")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "ragpipe/1.0", "user agent string for HTTP requests")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for HTTP requests")
	rootCmd.Flags().DurationVar(&baseDelay, "base-delay", time.Second, "base delay between requests to the same host")
	rootCmd.Flags().DurationVar(&jitter, "jitter", 500*time.Millisecond, "random jitter added to base delay")
	rootCmd.Flags().BoolVar(&respectRobots, "respect-robots", true, "honor robots.txt")
	rootCmd.Flags().StringArrayVar(&allowedHosts, "allowed-host", []string{}, "explicit hostname allowlist (defaults to the seed's host)")

	rootCmd.Flags().StringVar(&chunkStrategy, "chunk-strategy", "auto", "chunking strategy: fixed_size, paragraph, smart, semantic, intelligent, memory_optimized, auto")
	rootCmd.Flags().IntVar(&maxChunkSize, "max-chunk-size", 1000, "maximum chunk size")
	rootCmd.Flags().IntVar(&minChunkSize, "min-chunk-size", 100, "minimum chunk size")
	rootCmd.Flags().IntVar(&overlapSize, "overlap-size", 100, "overlap between consecutive chunks")
	rootCmd.Flags().BoolVar(&useTokens, "use-tokens", false, "measure chunk size in estimated tokens instead of characters")

	rootCmd.Flags().BoolVar(&enableSummary, "enhance-summary", false, "AI-summarize each page (requires a completion service; see package service)")
	rootCmd.Flags().BoolVar(&enableRewrite, "enhance-rewrite", false, "AI-rewrite each page")
	rootCmd.Flags().BoolVar(&enableMetadata, "enhance-metadata", false, "AI-extract structured metadata from each page")

	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "suppress progress lines on stderr")
}

func runRoot(cmd *cobra.Command, args []string) error {
	if seedURL == "" {
		return fmt.Errorf("--seed-url is required")
	}

	crawlOpts := model.CrawlOptions{
		Mode:          model.CrawlMode(crawlModeFlag),
		MaxDepth:      maxDepth,
		MaxPages:      maxPages,
		Concurrency:   concurrency,
		BaseDelay:     baseDelay,
		Jitter:        jitter,
		RandomSeed:    1,
		RetryCount:    3,
		UserAgent:     userAgent,
		Timeout:       timeout,
		AllowedHosts:  allowedHosts,
		RespectRobots: respectRobots,
	}

	chunkOpts := model.DefaultChunkingOptions()
	chunkOpts.Strategy = chunkStrategy
	chunkOpts.MaxChunkSize = maxChunkSize
	chunkOpts.MinChunkSize = minChunkSize
	chunkOpts.OverlapSize = overlapSize
	chunkOpts.UseTokens = useTokens

	pipelineOpts := model.DefaultPipelineOptions()
	pipelineOpts.MaxConcurrentRequests = concurrency
	pipelineOpts.Enhance.EnableSummary = enableSummary
	pipelineOpts.Enhance.EnableRewrite = enableRewrite
	pipelineOpts.Enhance.EnableMetadata = enableMetadata

	p := pipeline.New(pipelineOpts)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	chunks, bus, err := p.ProcessWebsiteAsync(ctx, seedURL, crawlOpts, chunkOpts)
	if err != nil {
		return err
	}

	if !quiet && bus != nil {
		bus.Subscribe(events.Progress, func(ev events.Event) {
			if prog, ok := ev.Payload.(model.ProcessingProgress); ok {
				fmt.Fprintf(os.Stderr, "fetched=%d extracted=%d chunks=%d errors=%d\n",
					prog.URLsFetched, prog.URLsExtracted, prog.ChunksEmitted, prog.ErrorsSeen)
			}
		})
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	enc := json.NewEncoder(w)
	for c := range chunks {
		if err := enc.Encode(c); err != nil {
			return err
		}
	}
	return nil
}
