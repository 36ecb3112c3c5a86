// Package store provides the persistence contract pkg/tracker uses to
// back its recorded outcomes, grounded on the
// teacher's routers.StatsStore split between routers/memory_stats_store.go
// and routers/redis_stats_store.go: a local in-process default plus an
// optional Redis-backed implementation so state survives process
// restarts and is shared across instances.
//
// Unlike the teacher's StatsStore, this contract is generic: callers
// serialize their own record shape to bytes (the Performance Tracker
// writes each recorded outcome as JSON) and address it by key, rather than the store knowing about deployments and latency
// histories.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when Get is called on a key that has never
// been written.
var ErrNotFound = errors.New("store: key not found")

// Store is the persistence contract for router state that must outlive
// a single process or be shared across instances.
type Store interface {
	// Get returns the raw bytes last written under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Incr atomically adds delta to the integer counter at key and
	// returns the counter's new value. A key with no prior value
	// starts from zero.
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	// Keys returns every key currently stored with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close releases resources held by the store.
	Close() error
}
