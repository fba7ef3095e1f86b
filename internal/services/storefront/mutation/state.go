package mutation

import "github.com/louisbranch/storefront/internal/services/storefront/querycache"

// Status is the lifecycle stage of a mutation.
type Status int

const (
	// StatusPending means the tentative effect is visible and the remote
	// call has not resolved.
	StatusPending Status = iota
	// StatusConfirmed means the remote call succeeded.
	StatusConfirmed
	// StatusRolledBack means the remote call failed and the tentative effect
	// was undone.
	StatusRolledBack
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// State is one of Pending, Confirmed or RolledBack.
type State interface {
	Status() Status
	isState()
}

// Pending holds what is needed to undo the tentative effect exactly.
type Pending struct {
	Snapshots []querycache.Snapshot
	undo      UndoFunc
}

// Status implements State.
func (Pending) Status() Status { return StatusPending }
func (Pending) isState()       {}

// Confirmed carries the remote result.
type Confirmed struct {
	Result any
}

// Status implements State.
func (Confirmed) Status() Status { return StatusConfirmed }
func (Confirmed) isState()       {}

// RolledBack carries the classified failure.
type RolledBack struct {
	Err error
}

// Status implements State.
func (RolledBack) Status() Status { return StatusRolledBack }
func (RolledBack) isState()       {}
