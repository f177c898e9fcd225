package frontier

/*
 Frontier - manages crawl state & ordering
*/

import (
	"net/url"
	"time"
)

// CrawlAdmissionCandidate represents a URL that has already been
// admitted by the scheduler.
//
// Invariants:
// - Robots.txt checks have passed
// - Crawl scope and limits have been enforced
// - Frontier MUST treat this as an admitted URL
// - Frontier MUST NOT re-evaluate admission semantics
type CrawlAdmissionCandidate struct {
	// frontier MUST assume this URL is already admitted.
	targetURL url.URL

	// is it seed url or discovered during crawling?
	sourceContext SourceContext

	// additional information about the URL
	discoveryMetadata DiscoveryMetadata
}

func NewCrawlAdmissionCandidate(
	targetUrl url.URL,
	sourceContext SourceContext,
	discoveryMetadata DiscoveryMetadata,
) CrawlAdmissionCandidate {
	return CrawlAdmissionCandidate{
		targetURL:         targetUrl,
		sourceContext:     sourceContext,
		discoveryMetadata: discoveryMetadata,
	}
}

func (c *CrawlAdmissionCandidate) TargetURL() url.URL {
	return c.targetURL
}

func (c *CrawlAdmissionCandidate) SourceContext() SourceContext {
	return c.sourceContext
}

func (c *CrawlAdmissionCandidate) DiscoveryMetadata() DiscoveryMetadata {
	return c.discoveryMetadata
}

type SourceContext string

const (
	SourceSeed  = "Seed"
	SourceCrawl = "Crawl"
)

type DiscoveryMetadata struct {
	// the depth of the path relative to hostname where the url is found
	// hostname/root -> depth = 0
	// TODO: implement delay overriding in both scheduler and frontier
	depth         int
	delayOverride *time.Duration

	// parentURL is the URL this candidate was discovered on, empty for a
	// seed. Carried so the crawler can stamp parent provenance on its
	// results without the frontier package knowing anything about them.
	parentURL string
}

func NewDiscoveryMetadata(
	depth int,
	delayOverride *time.Duration,
) DiscoveryMetadata {
	return DiscoveryMetadata{
		depth:         depth,
		delayOverride: delayOverride,
	}
}

// NewDiscoveryMetadataWithParent is NewDiscoveryMetadata plus the
// discovering page's URL, used by internal/crawl when admitting a link
// found on an already-fetched page.
func NewDiscoveryMetadataWithParent(
	depth int,
	delayOverride *time.Duration,
	parentURL string,
) DiscoveryMetadata {
	return DiscoveryMetadata{
		depth:         depth,
		delayOverride: delayOverride,
		parentURL:     parentURL,
	}
}

func (d DiscoveryMetadata) Depth() int {
	return d.depth
}

func (d DiscoveryMetadata) DelayOverride() *time.Duration {
	return d.delayOverride
}

func (d DiscoveryMetadata) ParentURL() string {
	return d.parentURL
}
