// Package querycache keeps short-lived copies of server collections keyed by
// hierarchical Keys.
//
// Reads serve the cached value and revalidate in the background once it is
// stale. Concurrent fetches of one key share a single request. Every fetch,
// write and patch takes a per-key token; a result is applied only when its
// token is newer than the visible value's, so the cache always reflects the
// latest-issued request that has completed.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/storefront/internal/platform/timeouts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/louisbranch/storefront/internal/services/storefront/querycache"

var (
	// ErrClosed indicates the cache no longer starts fetches.
	ErrClosed = errors.New("query cache is closed")
	// ErrNoFetcher indicates a fetch was requested for a key nobody registered
	// a fetcher for.
	ErrNoFetcher = errors.New("query cache fetcher is required")
	// ErrDiscard is returned by a fetcher whose result must not be applied.
	ErrDiscard = errors.New("query cache result discarded")
)

// Cache is a process-wide keyed store of fetched values.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	group   singleflight.Group

	now        func() time.Time
	staleAfter time.Duration
	gcAfter    time.Duration
	tracer     trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStaleAfter sets the default validity window.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// WithGCAfter sets how long an unreferenced entry is kept.
func WithGCAfter(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.gcAfter = d
		}
	}
}

// WithTracer overrides the tracer used for fetch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Cache) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// New builds an empty cache. Close releases its background fetches.
func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries:    make(map[Key]*entry),
		now:        time.Now,
		staleAfter: timeouts.CacheStaleAfter,
		gcAfter:    timeouts.CacheGCAfter,
		tracer:     otel.Tracer(tracerName),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns the current entry for key and starts a background fetch when
// the entry is absent or stale. The stale value stays visible meanwhile.
func (c *Cache) Read(key Key, fetcher Fetcher, policy Policy) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	if fetcher != nil {
		e.fetcher = fetcher
	}
	if policy.StaleAfter > 0 {
		e.staleAfter = policy.StaleAfter
	}
	now := c.now()
	e.lastUsed = now
	if e.flight == nil && e.fetcher != nil && c.ctx.Err() == nil && e.isStale(now, c.staleAfter) {
		c.startLocked(e, e.fetcher)
	}
	return e.snapshot(now, c.staleAfter)
}

// Fetch waits for a fetch of key regardless of staleness. It joins a fetch
// already in flight instead of issuing a second request. A nil fetcher reuses
// the one last registered for key.
func (c *Cache) Fetch(ctx context.Context, key Key, fetcher Fetcher) (Entry, error) {
	return c.fetchNow(ctx, key, fetcher, true)
}

// Refresh is Fetch without registering fetcher for later revalidation. Pollers
// use it so their wrapped fetcher never outlives them.
func (c *Cache) Refresh(ctx context.Context, key Key, fetcher Fetcher) (Entry, error) {
	return c.fetchNow(ctx, key, fetcher, false)
}

func (c *Cache) fetchNow(ctx context.Context, key Key, fetcher Fetcher, register bool) (Entry, error) {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return Entry{}, ErrClosed
	}
	e := c.entryLocked(key)
	if fetcher != nil && register {
		e.fetcher = fetcher
	}
	if fetcher == nil {
		fetcher = e.fetcher
	}
	if fetcher == nil {
		c.mu.Unlock()
		return Entry{}, fmt.Errorf("fetch %s: %w", key, ErrNoFetcher)
	}
	e.lastUsed = c.now()

	var results <-chan singleflight.Result
	if f := e.flight; f != nil {
		results = c.group.DoChan(f.name, f.run)
	} else {
		results = c.startLocked(e, fetcher)
	}
	c.mu.Unlock()

	select {
	case res := <-results:
		c.mu.Lock()
		snapshot := e.snapshot(c.now(), c.staleAfter)
		c.mu.Unlock()
		return snapshot, res.Err
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

// Peek returns the entry for key without touching it.
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(c.now(), c.staleAfter), true
}

// Write sets the value of key without a network call. Any fetch that started
// before the write is discarded when it lands.
func (c *Cache) Write(key Key, value any) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	now := c.now()
	e.lastUsed = now
	c.applyLocked(e, e.nextToken(), value, nil)
	return e.snapshot(now, c.staleAfter)
}

// Invalidate marks every entry under prefix stale and returns how many
// matched. Entries with consumers attached are refetched right away.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if !key.HasPrefix(prefix) {
			continue
		}
		count++
		e.staleBefore = e.issued
		// A fetch already in flight may carry pre-invalidation data; let
		// it land but stop new readers from joining it.
		e.flight = nil
		if e.refs > 0 && e.fetcher != nil && c.ctx.Err() == nil {
			c.startLocked(e, e.fetcher)
		}
	}
	return count
}

// Retain registers a consumer of key. The returned release func is safe to
// call more than once.
func (c *Cache) Retain(key Key) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.refs++
	e.lastUsed = c.now()
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if e.refs > 0 {
				e.refs--
			}
			e.lastUsed = c.now()
		})
	}
}

// Collect drops entries nobody retains, with no fetch in flight, that were
// last used at least GCAfter before now.
func (c *Cache) Collect(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.refs > 0 || e.flight != nil {
			continue
		}
		if now.Sub(e.lastUsed) < c.gcAfter {
			continue
		}
		delete(c.entries, key)
		removed++
	}
	return removed
}

// Run collects unreferenced entries every interval until ctx is done or the
// cache is closed.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}
	if interval <= 0 {
		interval = c.gcAfter
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Collect(c.now()); removed > 0 {
				log.Printf("query cache: collected %d entries", removed)
			}
		}
	}
}

// Len returns the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close cancels background fetches and waits for them to return. Results
// arriving after Close are discarded.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	// Fetches start under mu after a ctx check.
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

type flight struct {
	name  string
	token uint64
	run   func() (any, error)
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, lastUsed: c.now()}
		c.entries[key] = e
	}
	return e
}

// startLocked issues a new token for e and launches its fetch. The flight
// name embeds the token so a finished flight is never rejoined.
func (c *Cache) startLocked(e *entry, fetcher Fetcher) <-chan singleflight.Result {
	f := &flight{token: e.nextToken()}
	f.name = fmt.Sprintf("%s#%d", e.key, f.token)
	f.run = func() (any, error) {
		defer c.wg.Done()
		return c.fetch(e, f, fetcher)
	}
	e.flight = f
	if !e.hasValue {
		e.state = StateLoading
	}
	c.wg.Add(1)
	return c.group.DoChan(f.name, f.run)
}

func (c *Cache) fetch(e *entry, f *flight, fetcher Fetcher) (any, error) {
	ctx, span := c.tracer.Start(c.ctx, "querycache.fetch", trace.WithAttributes(
		attribute.String("cache.key", e.key.String()),
		attribute.Int64("cache.token", int64(f.token)),
	))
	value, err := fetcher(ctx, e.key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e.flight == f {
		e.flight = nil
	}
	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}
	switch {
	case errors.Is(err, ErrDiscard):
	case err != nil:
		log.Printf("query cache: fetch %s: %v", e.key, err)
		c.applyLocked(e, f.token, value, err)
	default:
		c.applyLocked(e, f.token, value, nil)
	}
	if e.state == StateLoading && e.flight == nil {
		e.state = StateIdle
	}
	return value, err
}

// applyLocked makes a result visible if token is newer than the current one.
func (c *Cache) applyLocked(e *entry, token uint64, value any, err error) bool {
	if token <= e.applied {
		return false
	}
	if err != nil {
		// A failed refetch leaves the invalidated value in place, still stale.
		if e.applied <= e.staleBefore {
			e.staleBefore = token
		}
		e.applied = token
		e.state = StateError
		e.err = err
		return true
	}
	e.applied = token
	e.value = value
	e.hasValue = true
	e.fetchedAt = c.now()
	e.state = StateSuccess
	e.err = nil
	e.optimistic = false
	return true
}
