package frontier

/*
Frontier Responsibilities
- Maintain BFS ordering (all depth-N URLs dequeue before any depth-N+1)
- Deduplicate URLs against the visited set, atomically with enqueue
- Track crawl depth and enforce the depth bound
- Bound memory: a full frontier drops the NEWEST enqueue attempts,
  never already-admitted entries
- Block takers until work arrives or the frontier closes
- Knows nothing about:
	- fetching
	- rendering
	- extraction

It is a data structure + policy module, not a pipeline executor.

The visited set is keyed by canonical URL string: url.URL is unusable as
a map key because its pointer fields break value equality for
semantically identical URLs.
*/

import (
	"context"
	"sync"

	"github.com/thepingdoctor/scrape-api-docs/pkg/urlutil"
)

type CrawlFrontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queuesByDepth map[int]*FIFOQueue[CrawlToken]
	visited       Set[string]
	pending       int
	nextSeq       int64
	closed        bool

	// maxDepth 0 means unbounded; capacity bounds total pending entries.
	maxDepth int
	capacity int
}

func NewCrawlFrontier(capacity int, maxDepth int) *CrawlFrontier {
	if capacity < 1 {
		capacity = 100_000
	}
	f := &CrawlFrontier{
		queuesByDepth: make(map[int]*FIFOQueue[CrawlToken]),
		visited:       NewSet[string](),
		maxDepth:      maxDepth,
		capacity:      capacity,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Submit admits a candidate: visited-set insert and enqueue happen
// atomically under one lock, so a URL can never be enqueued twice.
func (f *CrawlFrontier) Submit(candidate CrawlAdmissionCandidate) SubmitOutcome {
	meta := candidate.DiscoveryMetadata()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return OutcomeClosed
	}
	if f.maxDepth > 0 && meta.Depth() > f.maxDepth {
		return OutcomeDepthExceeded
	}

	target := candidate.TargetURL()
	key := urlutil.Canonicalize(target).String()
	if f.visited.Contains(key) {
		return OutcomeDuplicate
	}

	if f.pending >= f.capacity {
		// Back-pressure: dropping the newest attempt is preferred over
		// blocking workers that may hold browser pages.
		return OutcomeDropped
	}

	f.visited.Add(key)

	depth := meta.Depth()
	queue, ok := f.queuesByDepth[depth]
	if !ok {
		queue = NewFIFOQueue[CrawlToken]()
		f.queuesByDepth[depth] = queue
	}
	queue.Enqueue(NewCrawlToken(target, depth, meta.Parent(), f.nextSeq))
	f.nextSeq++
	f.pending++

	f.cond.Signal()
	return OutcomeAdmitted
}

// Dequeue blocks until a token is available, the frontier closes, or the
// context is cancelled. The second return value is false on close or
// cancellation.
func (f *CrawlFrontier) Dequeue(ctx context.Context) (CrawlToken, bool) {
	// Wake this waiter when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return CrawlToken{}, false
		}
		if token, ok := f.dequeueLocked(); ok {
			return token, true
		}
		if f.closed {
			return CrawlToken{}, false
		}
		f.cond.Wait()
	}
}

// TryDequeue takes a token without blocking.
func (f *CrawlFrontier) TryDequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dequeueLocked()
}

// dequeueLocked pops from the shallowest non-empty depth level,
// skipping gaps, so BFS ordering holds even when a level was never
// populated.
func (f *CrawlFrontier) dequeueLocked() (CrawlToken, bool) {
	if f.pending == 0 {
		return CrawlToken{}, false
	}
	minDepth := -1
	for depth, queue := range f.queuesByDepth {
		if queue.Size() == 0 {
			continue
		}
		if minDepth == -1 || depth < minDepth {
			minDepth = depth
		}
	}
	if minDepth == -1 {
		return CrawlToken{}, false
	}
	token, _ := f.queuesByDepth[minDepth].Dequeue()
	f.pending--
	return token, true
}

// Close wakes every blocked taker; subsequent Submits are rejected.
func (f *CrawlFrontier) Close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// VisitedCount returns the number of unique URLs ever admitted. The
// visited set is append-only; dequeuing does not shrink it.
func (f *CrawlFrontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Size()
}

// PendingCount returns the number of tokens awaiting dispatch.
func (f *CrawlFrontier) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// IsVisited reports whether a canonical URL has ever been admitted.
func (f *CrawlFrontier) IsVisited(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Contains(key)
}
