package querycache

import (
	"context"
	"time"
)

// State is the fetch lifecycle of an entry.
type State int

const (
	// StateIdle means nothing has been fetched or written yet.
	StateIdle State = iota
	// StateLoading means the first fetch is in flight and no value exists.
	StateLoading
	// StateSuccess means the entry holds a value.
	StateSuccess
	// StateError means the last applied fetch failed.
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Fetcher loads the value for key from the remote side.
type Fetcher func(ctx context.Context, key Key) (any, error)

// Policy overrides per-key cache behavior.
type Policy struct {
	// StaleAfter is how long a fetched value is served without a refetch.
	// Zero uses the cache default.
	StaleAfter time.Duration
}

// Entry is a point-in-time copy of one cache entry.
type Entry struct {
	Key       Key
	Value     any
	HasValue  bool
	FetchedAt time.Time
	State     State
	Err       error
	// Fetching is true while a request for the key is outstanding.
	Fetching bool
	// Stale is true once the value outlived its policy or was invalidated.
	Stale bool
	// Optimistic is true while the visible value comes from a local patch.
	Optimistic bool
}

// Value returns the entry value as V.
func Value[V any](entry Entry) (V, bool) {
	var zero V
	if !entry.HasValue {
		return zero, false
	}
	value, ok := entry.Value.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

type entry struct {
	key        Key
	value      any
	hasValue   bool
	fetchedAt  time.Time
	state      State
	err        error
	optimistic bool

	staleAfter time.Duration
	fetcher    Fetcher

	// issued is the last token handed out for this key; applied is the token
	// of the value currently visible. A result is applied only when its token
	// is newer than applied, so a slow older response never overwrites a
	// newer one.
	issued  uint64
	applied uint64
	// staleBefore marks tokens whose data predates the last invalidation.
	staleBefore uint64
	flight      *flight

	refs     int
	lastUsed time.Time
}

func (e *entry) nextToken() uint64 {
	e.issued++
	return e.issued
}

func (e *entry) isStale(now time.Time, defaultStaleAfter time.Duration) bool {
	if !e.hasValue {
		return true
	}
	if e.applied <= e.staleBefore || e.state == StateError {
		return true
	}
	if e.optimistic {
		return false
	}
	staleAfter := e.staleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return !now.Before(e.fetchedAt.Add(staleAfter))
}

func (e *entry) snapshot(now time.Time, defaultStaleAfter time.Duration) Entry {
	return Entry{
		Key:        e.key,
		Value:      e.value,
		HasValue:   e.hasValue,
		FetchedAt:  e.fetchedAt,
		State:      e.state,
		Err:        e.err,
		Fetching:   e.flight != nil,
		Stale:      e.hasValue && e.isStale(now, defaultStaleAfter),
		Optimistic: e.optimistic,
	}
}
