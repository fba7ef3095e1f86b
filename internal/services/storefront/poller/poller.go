// Package poller refetches cache entries on a fixed interval while at least
// one consumer is attached.
//
// A tick is skipped, never queued, while the previous request for the same
// key is outstanding. Detaching the last consumer stops the task; a result
// that lands afterwards is discarded.
package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/louisbranch/storefront/internal/platform/timeouts"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/storefront/internal/services/storefront/poller"

var (
	// ErrPollerNotConfigured indicates the poller has no cache.
	ErrPollerNotConfigured = errors.New("poller is not configured")
	// ErrPollerStopped indicates Attach was called after Stop.
	ErrPollerStopped = errors.New("poller is stopped")
)

// Stats counts the activity of one polling task.
type Stats struct {
	Ticks    int64
	Requests int64
	Skipped  int64
}

// Poller owns one polling task per key.
type Poller struct {
	cache    *querycache.Cache
	interval time.Duration
	tracer   trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks map[querycache.Key]*task
	wg    sync.WaitGroup
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the interval used when Attach gets a non-positive one.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// New builds a poller over cache.
func New(cache *querycache.Cache, opts ...Option) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		cache:    cache,
		interval: timeouts.MessagePoll,
		tracer:   otel.Tracer(tracerName),
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(map[querycache.Key]*task),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type task struct {
	key      querycache.Key
	fetcher  querycache.Fetcher
	interval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	release func()
	refs    int

	inFlight atomic.Bool
	ticks    atomic.Int64
	requests atomic.Int64
	skipped  atomic.Int64
}

// Attach adds a consumer of key. The first consumer starts a task fetching
// key every interval; later consumers share it and the first interval wins.
// The returned detach func is safe to call more than once; the last detach
// stops the task and waits for its loop to exit.
func (p *Poller) Attach(key querycache.Key, fetcher querycache.Fetcher, interval time.Duration) (func(), error) {
	if p == nil || p.cache == nil {
		return nil, ErrPollerNotConfigured
	}
	if fetcher == nil {
		return nil, querycache.ErrNoFetcher
	}
	if interval <= 0 {
		interval = p.interval
	}

	p.mu.Lock()
	if p.ctx.Err() != nil {
		p.mu.Unlock()
		return nil, ErrPollerStopped
	}
	t, exists := p.tasks[key]
	if !exists {
		ctx, cancel := context.WithCancel(p.ctx)
		t = &task{
			key:      key,
			fetcher:  fetcher,
			interval: interval,
			ctx:      ctx,
			cancel:   cancel,
			done:     make(chan struct{}),
			release:  p.cache.Retain(key),
		}
		p.tasks[key] = t
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer close(t.done)
			p.loop(t)
		}()
	}
	t.refs++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.detach(t) })
	}, nil
}

// Active reports whether key is being polled.
func (p *Poller) Active(key querycache.Key) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tasks[key]
	return ok
}

// Stats returns the counters of the task polling key.
func (p *Poller) Stats(key querycache.Key) (Stats, bool) {
	if p == nil {
		return Stats{}, false
	}
	p.mu.Lock()
	t, ok := p.tasks[key]
	p.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return t.stats(), true
}

// Stop cancels every task and waits for outstanding requests to return.
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.cancel()
	for key, t := range p.tasks {
		delete(p.tasks, key)
		t.release()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) detach(t *task) {
	p.mu.Lock()
	t.refs--
	last := t.refs <= 0
	if last && p.tasks[t.key] == t {
		delete(p.tasks, t.key)
		t.release()
	}
	p.mu.Unlock()
	if !last {
		return
	}
	t.cancel()
	<-t.done
}

func (p *Poller) loop(t *task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			p.tick(t)
		}
	}
}

func (p *Poller) tick(t *task) {
	t.ticks.Add(1)
	if !t.inFlight.CompareAndSwap(false, true) {
		t.skipped.Add(1)
		return
	}
	t.requests.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer t.inFlight.Store(false)

		ctx, span := p.tracer.Start(t.ctx, "poller.tick", trace.WithAttributes(
			attribute.String("cache.key", t.key.String()),
		))
		defer span.End()
		if _, err := p.cache.Refresh(ctx, t.key, t.fetch); err != nil && !isShutdown(err) {
			log.Printf("poll %s: %v", t.key, err)
		}
	}()
}

// fetch runs the consumer fetcher and drops its result once the task is gone.
func (t *task) fetch(ctx context.Context, key querycache.Key) (any, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.ctx, cancel)
	defer stop()

	value, err := t.fetcher(ctx, key)
	if t.ctx.Err() != nil {
		return nil, querycache.ErrDiscard
	}
	return value, err
}

func (t *task) stats() Stats {
	return Stats{
		Ticks:    t.ticks.Load(),
		Requests: t.requests.Load(),
		Skipped:  t.skipped.Load(),
	}
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, querycache.ErrDiscard) ||
		errors.Is(err, querycache.ErrClosed)
}
