// Package id generates URL-safe identifiers for locally created records.
//
// Identifiers are UUIDv4 bytes encoded as lowercase base32 (RFC 4648) with no
// padding, so they are always 26 characters long.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TemporaryPrefix marks ids minted on the client before the server assigns one.
const TemporaryPrefix = "tmp_"

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new random identifier.
func NewID() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(raw[:])), nil
}

// NewTemporaryID returns a client-side placeholder id for an optimistic record.
func NewTemporaryID() (string, error) {
	value, err := NewID()
	if err != nil {
		return "", err
	}
	return TemporaryPrefix + value, nil
}

// IsTemporary reports whether id was minted by NewTemporaryID.
func IsTemporary(id string) bool {
	return strings.HasPrefix(id, TemporaryPrefix)
}
