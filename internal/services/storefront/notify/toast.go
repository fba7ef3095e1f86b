// Package notify delivers fire-and-forget toasts about cart and mutation
// outcomes. Toasts are informational; nothing depends on their delivery.
package notify

import (
	"maps"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
)

// Level is the severity of a toast.
type Level int

const (
	// LevelSuccess confirms a completed action.
	LevelSuccess Level = iota
	// LevelError reports a rejected or rolled back action.
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "success"
}

// Success events.
const (
	EventCartItemAdded       = "cart.item_added"
	EventCartItemRemoved     = "cart.item_removed"
	EventCartUpdated         = "cart.updated"
	EventCartCleared         = "cart.cleared"
	EventOrderPlaced         = "order.placed"
	EventWishlistAdded       = "wishlist.added"
	EventWishlistRemoved     = "wishlist.removed"
	EventConversationStarted = "conversation.started"
)

// Toast is one user-facing notification.
type Toast struct {
	Level    Level
	Event    string
	Code     apperrors.Code
	Message  string
	Metadata map[string]string
}

// Success builds a success toast for event.
func Success(event string, metadata map[string]string) Toast {
	return Toast{Level: LevelSuccess, Event: event, Metadata: maps.Clone(metadata)}
}

// FromError builds an error toast carrying the domain code and metadata of err.
func FromError(err error) Toast {
	toast := Toast{Level: LevelError, Code: apperrors.CodeOf(err)}
	if err == nil {
		return toast
	}
	toast.Message = err.Error()
	if domainErr, ok := apperrors.As(err); ok {
		toast.Metadata = maps.Clone(domainErr.Metadata)
	}
	return toast
}
