package requestcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Transport delivers requests to the GraphQL proxy.
// Do sends one JSON object and receives one JSON object. DoBatch sends a JSON
// array and must receive an array of the same length and order.
type Transport interface {
	Do(ctx context.Context, req Request) (json.RawMessage, error)
	DoBatch(ctx context.Context, reqs []Request) ([]json.RawMessage, error)
}

// Config holds the cache configuration.
type Config struct {
	// Capacity is the maximum number of entries kept
	Capacity int

	// TTL is how long an entry stays live after insertion
	TTL time.Duration
}

// DefaultConfig returns the default configuration (500 entries, 5 minutes).
func DefaultConfig() Config {
	return Config{
		Capacity: 500,
		TTL:      5 * time.Minute,
	}
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for TTL decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache memoizes upstream responses by request fingerprint.
// It is safe for concurrent use.
type Cache struct {
	transport Transport
	store     *lru.Cache[string, *Entry]
	ttl       time.Duration
	now       func() time.Time
	flights   singleflight.Group
	logger    zerolog.Logger
}

// New creates a request cache in front of transport.
func New(transport Transport, cfg Config, opts ...Option) (*Cache, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be > 0 (got %d)", cfg.Capacity)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be > 0 (got %s)", cfg.TTL)
	}

	c := &Cache{
		transport: transport,
		ttl:       cfg.TTL,
		now:       time.Now,
		logger:    log.With().Str("component", "request-cache").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	store, err := lru.NewWithEvict[string, *Entry](cfg.Capacity, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create lru store: %w", err)
	}
	c.store = store

	return c, nil
}

// Resolve returns the response for req, from cache when a live entry exists.
// Otherwise exactly one upstream call is made and its result stored.
// Concurrent callers of the same uncached request share that call.
//
// If ctx ends first, Resolve returns ctx.Err() while the upstream call runs
// to completion; a successful result is still cached.
func (c *Cache) Resolve(ctx context.Context, req Request) (json.RawMessage, error) {
	fp, err := Fingerprint(req)
	if err != nil {
		return nil, err
	}

	if entry, ok := c.lookup(fp); ok {
		CacheHits.Inc()
		c.logger.Debug().Str("fingerprint", fp).Msg("Cache hit")
		return entry.Response, nil
	}
	CacheMisses.Inc()

	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(fp, func() (any, error) {
		// Another flight may have stored it between our miss and now
		if entry, ok := c.lookup(fp); ok {
			return entry.Response, nil
		}

		resp, err := c.fetch(detached, req)
		if err != nil {
			return nil, err
		}
		c.store.Add(fp, &Entry{Response: resp, CachedAt: c.now()})
		CacheEntries.Set(float64(c.store.Len()))
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			CoalescedRequests.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

// ResolveBatch resolves reqs positionally: the result has the same length and
// order as the input, duplicates included. Live hits are served from cache and
// the distinct remaining requests are sent in a single upstream call. Either
// every result is returned or an *UpstreamError is, in which case nothing new
// is cached.
func (c *Cache) ResolveBatch(ctx context.Context, reqs []Request) ([]json.RawMessage, error) {
	results := make([]json.RawMessage, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	var (
		uncached  []Request
		uncachedF []string
		positions = make(map[string][]int)
	)
	for i, req := range reqs {
		fp, err := Fingerprint(req)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}

		// Repeat of a request already queued for upstream
		if idx, queued := positions[fp]; queued {
			positions[fp] = append(idx, i)
			continue
		}

		if entry, ok := c.lookup(fp); ok {
			CacheHits.Inc()
			results[i] = entry.Response
			continue
		}

		CacheMisses.Inc()
		positions[fp] = []int{i}
		uncached = append(uncached, req)
		uncachedF = append(uncachedF, fp)
	}

	if len(uncached) == 0 {
		c.logger.Debug().Int("batch_size", len(reqs)).Msg("Batch fully served from cache")
		return results, nil
	}

	c.logger.Debug().
		Int("batch_size", len(reqs)).
		Int("uncached", len(uncached)).
		Msg("Fetching uncached batch requests")

	type outcome struct {
		responses []json.RawMessage
		err       error
	}
	done := make(chan outcome, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		responses, err := c.fetchBatch(detached, uncached)
		if err == nil {
			now := c.now()
			for i, fp := range uncachedF {
				c.store.Add(fp, &Entry{Response: responses[i], CachedAt: now})
			}
			CacheEntries.Set(float64(c.store.Len()))
		}
		done <- outcome{responses: responses, err: err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out = <-done:
	}
	if out.err != nil {
		return nil, out.err
	}

	// Assemble from the fetched slice rather than the store so a batch larger
	// than the capacity still returns every result
	for i, fp := range uncachedF {
		for _, pos := range positions[fp] {
			results[pos] = out.responses[i]
		}
	}

	return results, nil
}

// Peek returns the live entry for req without updating its recency.
func (c *Cache) Peek(req Request) (*Entry, bool) {
	fp, err := Fingerprint(req)
	if err != nil {
		return nil, false
	}
	entry, ok := c.store.Peek(fp)
	if !ok || entry.IsExpired(c.now(), c.ttl) {
		return nil, false
	}
	return entry, true
}

// Len returns the number of stored entries, expired ones included until they
// are looked up or evicted.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Purge removes every entry.
func (c *Cache) Purge() {
	c.store.Purge()
	CacheEntries.Set(0)
}

// lookup returns a live entry and marks it recently used.
// Expired entries are removed.
func (c *Cache) lookup(fp string) (*Entry, bool) {
	entry, ok := c.store.Get(fp)
	if !ok {
		return nil, false
	}

	if entry.IsExpired(c.now(), c.ttl) {
		c.store.Remove(fp)
		CacheEntries.Set(float64(c.store.Len()))
		c.logger.Debug().
			Str("fingerprint", fp).
			Dur("age", entry.Age(c.now())).
			Msg("Cache entry expired")
		return nil, false
	}

	return entry, true
}

// fetch performs a single upstream call and validates the response.
func (c *Cache) fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	UpstreamDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())

	if err == nil && !json.Valid(resp) {
		err = fmt.Errorf("malformed JSON response")
	}
	if err != nil {
		UpstreamCalls.WithLabelValues("single", "error").Inc()
		c.logger.Warn().Err(err).Msg("Upstream request failed")
		return nil, asUpstreamError(err)
	}

	UpstreamCalls.WithLabelValues("single", "ok").Inc()
	return resp, nil
}

// fetchBatch performs one upstream call for reqs. The response must be
// positionally aligned with reqs; anything else fails the whole batch.
func (c *Cache) fetchBatch(ctx context.Context, reqs []Request) ([]json.RawMessage, error) {
	start := time.Now()
	responses, err := c.transport.DoBatch(ctx, reqs)
	UpstreamDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())

	if err == nil && len(responses) != len(reqs) {
		err = fmt.Errorf("batch response has %d items, want %d", len(responses), len(reqs))
	}
	if err == nil {
		for i, resp := range responses {
			if !json.Valid(resp) {
				err = fmt.Errorf("malformed JSON in batch response item %d", i)
				break
			}
		}
	}
	if err != nil {
		UpstreamCalls.WithLabelValues("batch", "error").Inc()
		c.logger.Warn().Err(err).Int("uncached", len(reqs)).Msg("Upstream batch request failed")
		return nil, asUpstreamError(err)
	}

	UpstreamCalls.WithLabelValues("batch", "ok").Inc()
	return responses, nil
}

func (c *Cache) onEvict(fp string, _ *Entry) {
	CacheEvictions.Inc()
	c.logger.Debug().Str("fingerprint", fp).Msg("Cache entry evicted")
}
