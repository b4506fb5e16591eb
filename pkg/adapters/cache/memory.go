// Package cache holds entity snapshot caches for the processor.
package cache

import (
	"context"
	"time"

	utilcache "k8s.io/apimachinery/pkg/util/cache"
	"k8s.io/utils/clock"

	"catalogmirror/pkg/core"
)

const (
	// DefaultSize bounds the number of cached snapshots.
	DefaultSize = 4096
	// DefaultTTL is how long a snapshot is trusted.
	DefaultTTL = 24 * time.Hour
)

// Memory is an in-process LRU cache with per-entry expiry. Values are copied
// on the way in and out.
type Memory struct {
	entries *utilcache.LRUExpireCache
	ttl     time.Duration
}

// NewMemory creates a Memory cache. Non-positive arguments fall back to the defaults.
func NewMemory(size int, ttl time.Duration) *Memory {
	return NewMemoryWithClock(size, ttl, clock.RealClock{})
}

// NewMemoryWithClock creates a Memory cache that expires entries against clk.
func NewMemoryWithClock(size int, ttl time.Duration, clk clock.PassiveClock) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{entries: utilcache.NewLRUExpireCacheWithClock(size, clk), ttl: ttl}
}

// Get returns a copy of the snapshot stored under key.
func (memory *Memory) Get(_ context.Context, key string) (*core.Entity, bool, error) {
	value, found := memory.entries.Get(key)
	if !found {
		return nil, false, nil
	}
	return value.(*core.Entity).DeepCopy(), true, nil
}

// Set stores a copy of entity under key.
func (memory *Memory) Set(_ context.Context, key string, entity *core.Entity) error {
	memory.entries.Add(key, entity.DeepCopy(), memory.ttl)
	return nil
}

// Len returns the number of live entries.
func (memory *Memory) Len() int {
	return len(memory.entries.Keys())
}
