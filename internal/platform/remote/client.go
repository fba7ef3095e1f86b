package remote

import (
	"context"
	"encoding/json"
	"fmt"
)

// Payload is one successful JSON response body.
type Payload []byte

// Decode unmarshals the payload into target. An empty payload leaves target
// untouched.
func (p Payload) Decode(target any) error {
	if len(p) == 0 {
		return nil
	}
	if err := json.Unmarshal(p, target); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Client resolves or rejects one request against the storefront API.
//
// Implementations must return failures that Normalize understands; the
// simplest way is to return *Error directly.
type Client interface {
	Get(ctx context.Context, path string) (Payload, error)
	Post(ctx context.Context, path string, body any) (Payload, error)
	Put(ctx context.Context, path string, body any) (Payload, error)
	Patch(ctx context.Context, path string, body any) (Payload, error)
	Delete(ctx context.Context, path string) (Payload, error)
}

// GetJSON fetches path and decodes the payload into a new V.
func GetJSON[V any](ctx context.Context, client Client, path string) (V, error) {
	var value V
	payload, err := client.Get(ctx, path)
	if err != nil {
		return value, err
	}
	if err := payload.Decode(&value); err != nil {
		return value, err
	}
	return value, nil
}
