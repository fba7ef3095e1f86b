// Package mutation runs optimistic writes: the local effect is applied
// before the remote call, then confirmed by invalidating the affected cache
// keys or undone exactly when the call fails.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/identity"
	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/platform/timeouts"
	"github.com/louisbranch/storefront/internal/services/storefront/notify"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/storefront/internal/services/storefront/mutation"

// ErrPipelineNotConfigured indicates the pipeline has no cache.
var ErrPipelineNotConfigured = errors.New("mutation pipeline is not configured")

// ErrPipelineClosed indicates Run was called after Close.
var ErrPipelineClosed = errors.New("mutation pipeline is closed")

// ErrRemoteCallRequired indicates a request without a remote call.
var ErrRemoteCallRequired = errors.New("mutation remote call is required")

// LocalFunc applies a tentative effect outside the cache, such as a cart or
// chat overlay change, and returns how to undo it.
type LocalFunc func(ctx context.Context) (UndoFunc, error)

// UndoFunc reverts a LocalFunc effect.
type UndoFunc func(ctx context.Context) error

// RemoteFunc performs the authoritative write.
type RemoteFunc func(ctx context.Context) (any, error)

// Request describes one optimistic write.
type Request struct {
	// Name labels the mutation in logs and spans.
	Name string
	// Lane names the logical entity the mutation targets. While a mutation
	// is pending on a lane, Run rejects another one for the same lane. An
	// empty lane allows any number of concurrent mutations.
	Lane string
	// TargetKeys receive Patch and are invalidated on success.
	TargetKeys []querycache.Key
	Patch      querycache.PatchFunc
	Local      LocalFunc
	Remote     RemoteFunc
	// Invalidate lists extra key prefixes invalidated on success.
	Invalidate []querycache.Key
	// RequireIdentity rejects the request before any effect when nobody is
	// signed in.
	RequireIdentity bool
	// OnConfirm runs after a successful remote call, before invalidation.
	OnConfirm func(ctx context.Context, result any)
	// OnRollback runs after the tentative effect was undone.
	OnRollback func(err error)
	// SuccessToast is sent on confirmation when set.
	SuccessToast *notify.Toast
	// QuietFailure suppresses the failure toast.
	QuietFailure bool
}

// Mutation is the handle returned by Run.
type Mutation struct {
	ID   string
	Name string
	Lane string

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// State returns the current state.
func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the current status.
func (m *Mutation) Status() Status {
	return m.State().Status()
}

// Done is closed once the mutation reached a terminal state.
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the mutation settles and returns its result or the
// failure that rolled it back.
func (m *Mutation) Wait(ctx context.Context) (any, error) {
	select {
	case <-m.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	switch state := m.State().(type) {
	case Confirmed:
		return state.Result, nil
	case RolledBack:
		return nil, state.Err
	default:
		return nil, fmt.Errorf("mutation %s settled without a terminal state", m.ID)
	}
}

// settle moves a pending mutation to its terminal state exactly once.
func (m *Mutation) settle(state State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status() != StatusPending {
		return false
	}
	m.state = state
	close(m.done)
	return true
}

// Pipeline runs optimistic mutations against one cache.
type Pipeline struct {
	cache    *querycache.Cache
	identity identity.Provider
	sink     notify.Sink
	timeout  time.Duration
	tracer   trace.Tracer

	mu    sync.Mutex
	lanes map[string]*Mutation

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIdentity sets the identity provider consulted by RequireIdentity.
func WithIdentity(provider identity.Provider) Option {
	return func(p *Pipeline) {
		p.identity = provider
	}
}

// WithSink sets the toast sink.
func WithSink(sink notify.Sink) Option {
	return func(p *Pipeline) {
		p.sink = notify.OrDiscard(sink)
	}
}

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New builds a pipeline over cache.
func New(cache *querycache.Cache, opts ...Option) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cache:   cache,
		sink:    notify.Discard,
		timeout: timeouts.RemoteRequest,
		tracer:  otel.Tracer(tracerName),
		lanes:   make(map[string]*Mutation),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run applies the tentative effect and starts the remote call in the
// background. It returns once the effect is visible. Local rejections,
// missing identity and a busy lane are returned directly and leave no effect.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Mutation, error) {
	if p == nil || p.cache == nil {
		return nil, ErrPipelineNotConfigured
	}
	if req.Remote == nil {
		return nil, ErrRemoteCallRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.RequireIdentity && !identity.IsAuthenticated(p.identity) {
		err := apperrors.New(apperrors.CodeAuthenticationRequired, "sign in to "+displayName(req))
		p.sink.Notify(notify.FromError(err))
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.Err() != nil {
		return nil, ErrPipelineClosed
	}
	lane := strings.TrimSpace(req.Lane)
	if lane != "" {
		if pending, ok := p.lanes[lane]; ok {
			return nil, apperrors.WithMetadata(apperrors.CodeMutationInFlight, "mutation already pending", map[string]string{
				"Lane":       lane,
				"MutationID": pending.ID,
			})
		}
	}

	var undo UndoFunc
	if req.Local != nil {
		var err error
		undo, err = req.Local(ctx)
		if err != nil {
			p.sink.Notify(notify.FromError(err))
			return nil, err
		}
	}
	snapshots := p.cache.Patch(req.TargetKeys, req.Patch)

	m := &Mutation{
		ID:    ulid.Make().String(),
		Name:  req.Name,
		Lane:  lane,
		state: Pending{Snapshots: snapshots, undo: undo},
		done:  make(chan struct{}),
	}
	if lane != "" {
		p.lanes[lane] = m
	}

	// The remote call outlives the caller's context but keeps its trace.
	remoteCtx := trace.ContextWithSpanContext(p.ctx, trace.SpanContextFromContext(ctx))
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.complete(remoteCtx, m, req)
	}()
	return m, nil
}

// Pending reports whether a mutation is pending on lane.
func (p *Pipeline) Pending(lane string) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.lanes[strings.TrimSpace(lane)]
	return ok
}

// Close cancels outstanding remote calls and waits for their rollbacks.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pipeline) complete(ctx context.Context, m *Mutation, req Request) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	callCtx, span := p.tracer.Start(callCtx, "mutation."+displayName(req), trace.WithAttributes(
		attribute.String("mutation.id", m.ID),
		attribute.String("mutation.lane", m.Lane),
	))
	result, err := req.Remote(callCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if err != nil {
		p.rollback(ctx, m, req, classify(err))
	} else {
		p.confirm(ctx, m, req, result)
	}
}

func (p *Pipeline) confirm(ctx context.Context, m *Mutation, req Request, result any) {
	if req.OnConfirm != nil {
		req.OnConfirm(ctx, result)
	}
	for _, key := range req.TargetKeys {
		p.cache.Invalidate(key)
	}
	for _, key := range req.Invalidate {
		p.cache.Invalidate(key)
	}
	if req.SuccessToast != nil {
		p.sink.Notify(*req.SuccessToast)
	}
	p.finish(m, Confirmed{Result: result})
}

func (p *Pipeline) rollback(ctx context.Context, m *Mutation, req Request, err error) {
	pending, _ := m.State().(Pending)
	for _, key := range p.cache.Restore(pending.Snapshots) {
		// Newer data landed over the patch; refetch instead of guessing.
		log.Printf("mutation %s: %s changed while pending, invalidating", m.ID, key)
		p.cache.Invalidate(key)
	}
	if pending.undo != nil {
		if undoErr := pending.undo(context.WithoutCancel(ctx)); undoErr != nil {
			log.Printf("mutation %s: undo local effect: %v", m.ID, undoErr)
		}
	}
	if !apperrors.CodeOf(err).Local() {
		log.Printf("mutation %s rolled back: %v", m.ID, err)
	}
	if req.OnRollback != nil {
		req.OnRollback(err)
	}
	if !req.QuietFailure {
		p.sink.Notify(notify.FromError(err))
	}
	p.finish(m, RolledBack{Err: err})
}

func (p *Pipeline) finish(m *Mutation, state State) {
	p.mu.Lock()
	if m.Lane != "" && p.lanes[m.Lane] == m {
		delete(p.lanes, m.Lane)
	}
	p.mu.Unlock()
	m.settle(state)
}

// classify keeps domain errors as they are and maps anything else through
// the remote error taxonomy.
func classify(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return remote.Classify(err)
}

func displayName(req Request) string {
	if name := strings.TrimSpace(req.Name); name != "" {
		return name
	}
	return "mutation"
}
