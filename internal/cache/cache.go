// Package cache is the pipeline's optional memoization layer: an in-memory
// LRU in front of an optional distributed KV, keyed by
// stage+normalized-URL+options hash and carrying a per-entry TTL.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/wovenweb/ragpipe/pkg/hashutil"
)

// Distributed is the opaque KV a host may wire in as the second cache
// layer. Cache never assumes anything about its backing store beyond
// Get/Set/Delete.
type Distributed interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// Key builds the cache key "{stage}:{sha256(normalized_url+options_hash)[:16]}".
// optionsHash is any stable serialization of the options
// struct the caller used (callers typically pass a fmt.Sprintf("%+v", opts)).
func Key(stage, normalizedURL, optionsHash string) string {
	sum, err := hashutil.HashBytes([]byte(normalizedURL+optionsHash), hashutil.HashAlgoSHA256)
	if err != nil {
		// HashBytes only fails on an unknown algo constant, which never
		// happens here; fall back to an unhashed but still-unique key.
		sum = normalizedURL + optionsHash
	}
	if len(sum) > 16 {
		sum = sum[:16]
	}
	return stage + ":" + sum
}

type entry struct {
	key       string
	value     []byte
	weight    int64
	expiresAt time.Time
}

// Policy names the eviction strategy the Cache currently runs under. The
// choice is adaptive: LRU is the default, size-based kicks in once the
// resident weight passes sizePressureAt of the memory ceiling, and
// TTL-based kicks in when many entries are close to expiry.
type Policy string

const (
	PolicyLRU       Policy = "lru"
	PolicySizeBased Policy = "size_based"
	PolicyTTLBased  Policy = "ttl_based"
)

// Cache is the in-memory LRU layer with an optional Distributed second
// layer. It is safe for concurrent use; all state is guarded by mu.
type Cache struct {
	mu               sync.Mutex
	ll               *list.List // front = most recently used
	items            map[string]*list.Element
	maxItems         int
	maxWeightBytes   int64
	curWeightBytes   int64
	distributed      Distributed
	defaultTTL       time.Duration
	sizePressureAt   float64 // fraction of maxWeightBytes that triggers size-based eviction
	ttlPressureFrac  float64 // fraction of entries near expiry that triggers ttl-based eviction
	nearExpiryWindow time.Duration
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithDistributed wires a second-layer KV behind the in-memory LRU.
func WithDistributed(d Distributed) Option {
	return func(c *Cache) { c.distributed = d }
}

// WithMaxWeightBytes sets the byte-weighted memory ceiling that triggers
// size-based eviction.
func WithMaxWeightBytes(n int64) Option {
	return func(c *Cache) { c.maxWeightBytes = n }
}

// WithDefaultTTL sets the TTL applied to entries written without an
// explicit one.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *Cache) { c.defaultTTL = d }
}

// New builds a Cache holding up to maxItems entries in the LRU layer.
func New(maxItems int, opts ...Option) *Cache {
	c := &Cache{
		ll:               list.New(),
		items:            make(map[string]*list.Element),
		maxItems:         maxItems,
		maxWeightBytes:   1 << 28, // 256 MiB default ceiling
		defaultTTL:       10 * time.Minute,
		sizePressureAt:   0.9,
		ttlPressureFrac:  0.3,
		nearExpiryWindow: 5 * time.Minute,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get probes the memory layer first, then the distributed layer if wired.
// A distributed hit is promoted into memory. Cache failures (e.g. a
// distributed backend error) are non-fatal: Get reports a miss and the
// caller proceeds as if nothing were cached.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		if time.Now().Before(e.expiresAt) {
			c.ll.MoveToFront(el)
			val := append([]byte(nil), e.value...)
			c.mu.Unlock()
			return val, true
		}
		c.removeElementLocked(el)
	}
	c.mu.Unlock()

	if c.distributed == nil {
		return nil, false
	}
	val, ok, err := c.distributed.Get(key)
	if err != nil || !ok {
		return nil, false
	}
	c.Set(key, val, c.defaultTTL)
	return val, true
}

// Set writes value into both layers. Entries are defensive copies: a
// caller mutating its slice after Set cannot corrupt what Get returns.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	stored := append([]byte(nil), value...)

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		c.curWeightBytes -= e.weight
		e.value = stored
		e.weight = int64(len(stored))
		e.expiresAt = time.Now().Add(ttl)
		c.curWeightBytes += e.weight
		c.ll.MoveToFront(el)
	} else {
		e := &entry{key: key, value: stored, weight: int64(len(stored)), expiresAt: time.Now().Add(ttl)}
		el := c.ll.PushFront(e)
		c.items[key] = el
		c.curWeightBytes += e.weight
	}
	c.evictLocked()
	c.mu.Unlock()

	if c.distributed != nil {
		_ = c.distributed.Set(key, stored, ttl)
	}
}

// CurrentPolicy reports which eviction strategy would fire next.
func (c *Cache) CurrentPolicy() Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policyLocked()
}

func (c *Cache) policyLocked() Policy {
	if c.maxWeightBytes > 0 && float64(c.curWeightBytes) > float64(c.maxWeightBytes)*c.sizePressureAt {
		return PolicySizeBased
	}
	if c.nearExpiryFractionLocked() > c.ttlPressureFrac {
		return PolicyTTLBased
	}
	return PolicyLRU
}

func (c *Cache) nearExpiryFractionLocked() float64 {
	if len(c.items) == 0 {
		return 0
	}
	near := 0
	threshold := time.Now().Add(c.nearExpiryWindow)
	for _, el := range c.items {
		if el.Value.(*entry).expiresAt.Before(threshold) {
			near++
		}
	}
	return float64(near) / float64(len(c.items))
}

// evictLocked removes entries per the currently active policy until the
// cache is back under its limits. Caller must hold mu.
func (c *Cache) evictLocked() {
	for c.overLimitLocked() {
		switch c.policyLocked() {
		case PolicySizeBased:
			c.evictLargestLocked()
		case PolicyTTLBased:
			if !c.evictSoonestExpiringLocked() {
				c.evictOldestLocked()
			}
		default:
			c.evictOldestLocked()
		}
	}
}

func (c *Cache) overLimitLocked() bool {
	if c.maxItems > 0 && len(c.items) > c.maxItems {
		return true
	}
	if c.maxWeightBytes > 0 && c.curWeightBytes > c.maxWeightBytes {
		return true
	}
	return false
}

func (c *Cache) evictOldestLocked() {
	el := c.ll.Back()
	if el != nil {
		c.removeElementLocked(el)
	}
}

func (c *Cache) evictLargestLocked() {
	var largest *list.Element
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if largest == nil || el.Value.(*entry).weight > largest.Value.(*entry).weight {
			largest = el
		}
	}
	if largest != nil {
		c.removeElementLocked(largest)
	}
}

func (c *Cache) evictSoonestExpiringLocked() bool {
	var soonest *list.Element
	for el := c.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if soonest == nil || e.expiresAt.Before(soonest.Value.(*entry).expiresAt) {
			soonest = el
		}
	}
	if soonest == nil {
		return false
	}
	c.removeElementLocked(soonest)
	return true
}

func (c *Cache) removeElementLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, e.key)
	c.curWeightBytes -= e.weight
	if c.distributed != nil {
		_ = c.distributed.Delete(e.key)
	}
}

// Len returns the number of entries currently resident in the memory
// layer, including expired entries that no Get has removed yet. Intended
// for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
