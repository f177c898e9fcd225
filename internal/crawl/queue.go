package crawl

import (
	"net/url"
	"sync"

	"github.com/wovenweb/ragpipe/internal/frontier"
	"github.com/wovenweb/ragpipe/pkg/urlutil"
)

// frontierQueue is the shared BFS/DFS work list: one mutex-guarded slice
// of (url, depth, parent) candidates, popped from the front for
// BreadthFirst and the back for DepthFirst, with dedup against
// frontier.Set so a URL discovered twice is only ever admitted once.
//
// Termination uses an outstanding counter rather than "queue empty": a
// worker that pops an item still counts as outstanding work until it calls
// done, so the queue only reports exhausted once every in-flight fetch has
// had a chance to admit its own discovered links.
type frontierQueue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	items       []frontier.CrawlAdmissionCandidate
	visited     frontier.Set[string]
	dfs         bool
	maxPages    int
	admitted    int
	outstanding int
	closed      bool
}

func newFrontierQueue(dfs bool, maxPages int) *frontierQueue {
	q := &frontierQueue{
		visited:  frontier.NewSet[string](),
		dfs:      dfs,
		maxPages: maxPages,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// admit canonicalizes u, rejects it if already seen or the page budget is
// spent, and otherwise pushes a new candidate. filter is called with the
// canonical URL and must return false to reject (host/pattern scoping).
// parentURL is the page u was discovered on, empty for the seed.
func (q *frontierQueue) admit(u url.URL, depth int, source frontier.SourceContext, parentURL string, filter func(url.URL) bool) bool {
	canon := urlutil.Canonicalize(u)
	key := canon.String()

	q.mu.Lock()
	if q.closed || q.visited.Contains(key) || (q.maxPages > 0 && q.admitted >= q.maxPages) {
		q.mu.Unlock()
		return false
	}
	q.mu.Unlock()

	if filter != nil && !filter(canon) {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.visited.Contains(key) || (q.maxPages > 0 && q.admitted >= q.maxPages) {
		return false
	}
	q.visited.Add(key)
	q.admitted++
	q.outstanding++
	meta := frontier.NewDiscoveryMetadataWithParent(depth, nil, parentURL)
	q.items = append(q.items, frontier.NewCrawlAdmissionCandidate(canon, source, meta))
	q.cond.Signal()
	return true
}

// pop blocks until work is available, the queue is exhausted (no items and
// nothing outstanding), or the queue has been closed (cancellation).
func (q *frontierQueue) pop() (frontier.CrawlAdmissionCandidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closed || q.outstanding == 0 {
			return frontier.CrawlAdmissionCandidate{}, false
		}
		q.cond.Wait()
	}

	var c frontier.CrawlAdmissionCandidate
	if q.dfs {
		last := len(q.items) - 1
		c, q.items = q.items[last], q.items[:last]
	} else {
		c, q.items = q.items[0], q.items[1:]
	}
	return c, true
}

// done marks one previously-popped candidate as fully processed, including
// any children it admitted. Call it exactly once per successful pop.
func (q *frontierQueue) done() {
	q.mu.Lock()
	q.outstanding--
	if q.outstanding <= 0 {
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// close wakes every blocked pop so workers can exit on cancellation.
func (q *frontierQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}
