package querycache

import "time"

// PatchFunc computes the tentative value for key. current is the visible value
// and ok reports whether one exists. Returning apply=false leaves key alone.
type PatchFunc func(key Key, current any, ok bool) (next any, apply bool)

// Snapshot is the pre-patch state of one key, kept to undo the patch exactly.
type Snapshot struct {
	Key Key

	value      any
	hasValue   bool
	fetchedAt  time.Time
	state      State
	err        error
	optimistic bool
	stale      bool
	// token is the patch's own token; Restore only acts while it is still
	// the visible one.
	token uint64
}

// Value returns the value the key held before the patch.
func (s Snapshot) Value() (any, bool) {
	return s.value, s.hasValue
}

// Patch applies fn to every key in one critical section and returns the
// snapshots of the keys it changed. Patched values are visible to readers
// immediately and stay fresh until invalidated.
func (c *Cache) Patch(keys []Key, fn PatchFunc) []Snapshot {
	if fn == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var snapshots []Snapshot
	seen := make(map[Key]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		e := c.entryLocked(key)
		next, apply := fn(key, e.value, e.hasValue)
		if !apply {
			continue
		}
		snapshot := Snapshot{
			Key:        key,
			value:      e.value,
			hasValue:   e.hasValue,
			fetchedAt:  e.fetchedAt,
			state:      e.state,
			err:        e.err,
			optimistic: e.optimistic,
			stale:      e.hasValue && e.applied <= e.staleBefore,
		}
		snapshot.token = e.nextToken()
		e.applied = snapshot.token
		e.value = next
		e.hasValue = true
		if e.fetchedAt.IsZero() {
			e.fetchedAt = now
		}
		e.state = StateSuccess
		e.err = nil
		e.optimistic = true
		e.lastUsed = now
		snapshots = append(snapshots, snapshot)
	}
	return snapshots
}

// Restore puts every snapshot back, atomically. A key whose visible value is
// no longer the patch (a newer fetch or write landed) is left alone and
// returned as a conflict.
func (c *Cache) Restore(snapshots []Snapshot) (conflicts []Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range snapshots {
		e, ok := c.entries[s.Key]
		if !ok || e.applied != s.token {
			conflicts = append(conflicts, s.Key)
			continue
		}
		e.applied = e.nextToken()
		e.value = s.value
		e.hasValue = s.hasValue
		e.fetchedAt = s.fetchedAt
		e.state = s.state
		e.err = s.err
		e.optimistic = s.optimistic
		if s.stale {
			e.staleBefore = e.applied
		}
	}
	return conflicts
}
