package cache

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"mediashare/internal/metrics"
)

const (
	DefaultSize = 1000
	DefaultTTL  = 5 * time.Minute

	pagePrefix  = "p:"
	shortPrefix = "s:"

	shortIDLength   = 8
	shortIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// QueryCache holds computed query pages and short query ids in one bounded,
// time-expiring store. Values are shared between callers and must not be
// mutated.
type QueryCache struct {
	lru   *expirable.LRU[string, any]
	group singleflight.Group

	// gen is bumped by InvalidateAll. A computation started under an older
	// generation is returned to its callers but never stored.
	mu  sync.RWMutex
	gen atomic.Uint64

	shortMu sync.Mutex
	newID   func() string
}

type Option func(*QueryCache)

// WithIDSource replaces the random short id generator.
func WithIDSource(fn func() string) Option {
	return func(c *QueryCache) {
		if fn != nil {
			c.newID = fn
		}
	}
}

func NewQueryCache(size int, ttl time.Duration, opts ...Option) *QueryCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &QueryCache{
		lru:   expirable.NewLRU[string, any](size, nil, ttl),
		newID: randomShortID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *QueryCache) Get(key string) (any, bool) {
	v, ok := c.lru.Get(pagePrefix + key)
	if ok {
		metrics.CacheHitsTotal.Inc()
		return v, true
	}
	metrics.CacheMissesTotal.Inc()
	return nil, false
}

func (c *QueryCache) Set(key string, value any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.lru.Add(pagePrefix+key, value)
}

// InvalidateAll drops every cached page. Short ids survive.
func (c *QueryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen.Add(1)
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, pagePrefix) {
			c.lru.Remove(key)
		}
	}
	metrics.CacheInvalidationsTotal.Inc()
}

// Do returns the cached value for key or computes it. Concurrent misses for
// the same key share one computation.
func (c *QueryCache) Do(key string, compute func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	gen := c.gen.Load()
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10)+"|"+key, func() (any, error) {
		if v, ok := c.lru.Get(pagePrefix + key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.RLock()
		if c.gen.Load() == gen {
			c.lru.Add(pagePrefix+key, v)
		}
		c.mu.RUnlock()
		return v, nil
	})
	return v, err
}

// Compute is a typed wrapper over Do.
func Compute[T any](c *QueryCache, key string, fn func() (T, error)) (T, error) {
	v, err := c.Do(key, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	return fn()
}

// StoreShort saves text under a fresh short id and returns the id.
func (c *QueryCache) StoreShort(text string) string {
	c.shortMu.Lock()
	defer c.shortMu.Unlock()
	for {
		id := c.newID()
		if c.lru.Contains(shortPrefix + id) {
			continue
		}
		c.lru.Add(shortPrefix+id, text)
		return id
	}
}

// ResolveShort returns the text stored under id, or "" when unknown or expired.
func (c *QueryCache) ResolveShort(id string) string {
	v, ok := c.lru.Get(shortPrefix + id)
	if !ok {
		return ""
	}
	text, _ := v.(string)
	return text
}

func (c *QueryCache) Len() int {
	return c.lru.Len()
}

func randomShortID() string {
	b := make([]byte, shortIDLength)
	for i := range b {
		b[i] = shortIDAlphabet[rand.IntN(len(shortIDAlphabet))]
	}
	return string(b)
}
