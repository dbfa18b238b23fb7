package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Clock returns the current time.
type Clock func() time.Time

// LookupFunc observes every Get on a family.
type LookupFunc func(tier string, hit bool)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Family is a concurrency-safe map whose entries expire once
// now - storedAt exceeds the family TTL.
type Family[V any] struct {
	name     string
	ttl      time.Duration
	now      Clock
	onLookup LookupFunc

	mu      sync.RWMutex
	entries map[string]entry[V]
}

// NewFamily creates an empty family. A nil clock uses time.Now.
func NewFamily[V any](name string, ttl time.Duration, now Clock) *Family[V] {
	if now == nil {
		now = time.Now
	}
	return &Family[V]{
		name:    name,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry[V]),
	}
}

func (f *Family[V]) Name() string {
	return f.name
}

func (f *Family[V]) TTL() time.Duration {
	return f.ttl
}

// Get returns the value for key if present and not expired.
func (f *Family[V]) Get(key string) (V, bool) {
	f.mu.RLock()
	e, ok := f.entries[key]
	f.mu.RUnlock()

	if ok && f.expired(e) {
		f.mu.Lock()
		if cur, still := f.entries[key]; still && cur.storedAt.Equal(e.storedAt) {
			delete(f.entries, key)
		}
		f.mu.Unlock()
		ok = false
	}
	if f.onLookup != nil {
		f.onLookup(f.name, ok)
	}
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Lookup is Get unless fresh is set, in which case it always misses.
func (f *Family[V]) Lookup(key string, fresh bool) (V, bool) {
	if fresh {
		if f.onLookup != nil {
			f.onLookup(f.name, false)
		}
		var zero V
		return zero, false
	}
	return f.Get(key)
}

// Set stores value stamped with the current time.
func (f *Family[V]) Set(key string, value V) {
	f.mu.Lock()
	f.entries[key] = entry[V]{value: value, storedAt: f.now()}
	f.mu.Unlock()
}

func (f *Family[V]) Delete(key string) {
	f.mu.Lock()
	delete(f.entries, key)
	f.mu.Unlock()
}

// Len counts stored entries, expired ones included.
func (f *Family[V]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Purge drops expired entries and returns how many were removed.
func (f *Family[V]) Purge() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for key, e := range f.entries {
		if f.expired(e) {
			delete(f.entries, key)
			removed++
		}
	}
	return removed
}

func (f *Family[V]) expired(e entry[V]) bool {
	return f.now().Sub(e.storedAt) > f.ttl
}

// Key builds a composite cache key from chain, address and qualifiers.
func Key(chainID uint64, address common.Address, qualifiers ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%s", chainID, strings.ToLower(address.Hex()))
	for _, q := range qualifiers {
		b.WriteByte(':')
		b.WriteString(q)
	}
	return b.String()
}
