// Package storage defines the byte-record persistence contract used by the
// cart ledger.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// RecordStore persists named byte records across process restarts.
type RecordStore interface {
	// Load returns the stored bytes for name or ErrNotFound.
	Load(ctx context.Context, name string) ([]byte, error)
	// Save replaces the record for name.
	Save(ctx context.Context, name string, data []byte) error
}
