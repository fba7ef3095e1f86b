// Package timeouts defines shared timeout and interval constants used across
// the storefront sync layer. Centralizing these values prevents drift between
// the cache, the poller and the CLI, and makes the durations discoverable.
package timeouts

import "time"

// RemoteRequest caps one remote data client round trip.
const RemoteRequest = 10 * time.Second

// CacheStaleAfter is the default validity window of a cached collection.
const CacheStaleAfter = 30 * time.Second

// CacheGCAfter is how long an unreferenced cache entry survives.
const CacheGCAfter = 5 * time.Minute

// MessagePoll is the default conversation message polling interval.
const MessagePoll = 3 * time.Second

// StoreOpen limits how long opening the on-disk cart store may block on a
// file lock held by another process.
const StoreOpen = time.Second

// Shutdown limits how long background workers get to drain on exit.
const Shutdown = 5 * time.Second
