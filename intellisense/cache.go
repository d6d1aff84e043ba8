// Package intellisense caches AI completion results keyed by a cheap,
// lossy fingerprint of the code being completed.
package intellisense

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxSize         = 100
	DefaultCleanupInterval = 10 * time.Minute

	// fingerprintSpan is how many runes of code (suffix) and context
	// (prefix) participate in the key.
	fingerprintSpan = 50
)

var (
	metricHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meacode",
		Subsystem: "intellisense_cache",
		Name:      "hits_total",
		Help:      "IntelliSense cache lookups served from cache.",
	})
	metricMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meacode",
		Subsystem: "intellisense_cache",
		Name:      "misses_total",
		Help:      "IntelliSense cache lookups that fell through.",
	})
	metricEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meacode",
		Subsystem: "intellisense_cache",
		Name:      "evictions_total",
		Help:      "IntelliSense cache entries removed, by reason.",
	}, []string{"reason"})
)

// Result is a cached completion outcome.
type Result struct {
	Suggestions []string `json:"suggestions"`
	Error       string   `json:"error"`
}

type entry struct {
	result    Result
	timestamp time.Time
}

// Cache is a bounded, time-boxed map of IntelliSense results. Entries are
// evicted oldest-inserted first when the bound is reached; lookups do not
// refresh an entry's position.
type Cache struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, *entry]
	ttl     time.Duration
	maxSize int
	sweep   time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long an entry stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxSize bounds the number of entries.
func WithMaxSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithCleanupInterval sets the period used by Run.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweep = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates a Cache with the default TTL, bound and sweep interval.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:     DefaultTTL,
		maxSize: DefaultMaxSize,
		sweep:   DefaultCleanupInterval,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	// NewLRU only fails on a non-positive size, which the options prevent.
	c.entries, _ = simplelru.NewLRU[string, *entry](c.maxSize, nil)
	return c
}

// Fingerprint computes the cache key for a lookup. Only the tail of code and
// the head of context are considered, so distinct inputs may collide.
func Fingerprint(code, language, context string) string {
	codeRunes := []rune(code)
	tail := codeRunes
	if len(tail) > fingerprintSpan {
		tail = tail[len(tail)-fingerprintSpan:]
	}
	head := []rune(context)
	if len(head) > fingerprintSpan {
		head = head[:fingerprintSpan]
	}
	return fmt.Sprintf("%s:%d:%s:%s", language, len(codeRunes), string(tail), string(head))
}

// Get returns the cached result for the inputs. An expired entry is removed
// and reported as absent.
func (c *Cache) Get(code, language, context string) (Result, bool) {
	key := Fingerprint(code, language, context)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	if !ok {
		metricMisses.Inc()
		return Result{}, false
	}
	if c.now().Sub(e.timestamp) >= c.ttl {
		c.entries.Remove(key)
		metricEvictions.WithLabelValues("expired").Inc()
		metricMisses.Inc()
		return Result{}, false
	}
	metricHits.Inc()
	return cloneResult(e.result), true
}

// Set stores a result. A full cache first evicts exactly one entry, the
// oldest inserted. Re-setting a key updates it in place and keeps its
// insertion position.
func (c *Cache) Set(code, language, context string, suggestions []string, errMsg string) {
	key := Fingerprint(code, language, context)
	result := cloneResult(Result{Suggestions: suggestions, Error: errMsg})

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.entries.Len() >= c.maxSize {
		if _, _, ok := c.entries.RemoveOldest(); ok {
			metricEvictions.WithLabelValues("capacity").Inc()
		}
	}
	if e, ok := c.entries.Peek(key); ok {
		e.result = result
		e.timestamp = now
		return
	}
	c.entries.Add(key, &entry{result: result, timestamp: now})
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(e.timestamp) >= c.ttl {
			c.entries.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		metricEvictions.WithLabelValues("expired").Add(float64(removed))
	}
	return removed
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Run sweeps expired entries on the cleanup interval until ctx is done.
func (c *Cache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := c.Cleanup(); n > 0 {
				c.log.Debug().Int("removed", n).Msg("intellisense cache sweep")
			}
		}
	}
}

func cloneResult(r Result) Result {
	if r.Suggestions != nil {
		r.Suggestions = append([]string(nil), r.Suggestions...)
	}
	return r
}
