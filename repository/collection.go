// Package repository provides the entity managers backed by the local store.
//
// Every entity type lives in one storage slot holding a JSON array. Each
// operation loads the whole array, changes it and writes it back. Within a
// process a per-slot mutex serializes those read-modify-write cycles; across
// processes the last writer wins.
package repository

import (
	"sync"
	"time"

	"cityreport/store"

	"github.com/sirupsen/logrus"
)

// Record is anything stored in a Collection.
type Record interface {
	RecordID() string
}

// Collection is the generic load/mutate/store cycle over one slot.
type Collection[T Record] struct {
	mu    sync.RWMutex
	store *store.LocalStore
	key   string
}

// NewCollection binds a Collection to the given slot.
func NewCollection[T Record](s *store.LocalStore, key string) *Collection[T] {
	return &Collection[T]{store: s, key: key}
}

func (c *Collection[T]) load() []T {
	return store.Get(c.store, c.key, []T{})
}

// All returns a fresh copy of every record in insertion order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.load()
}

// Find returns the first record matching match.
func (c *Collection[T]) Find(match func(T) bool) (T, bool) {
	for _, rec := range c.All() {
		if match(rec) {
			return rec, true
		}
	}
	var zero T
	return zero, false
}

// Get returns the record with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	return c.Find(func(rec T) bool { return rec.RecordID() == id })
}

// Insert appends rec unless its id is already present.
func (c *Collection[T]) Insert(rec T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.load()
	for _, existing := range items {
		if existing.RecordID() == rec.RecordID() {
			return false
		}
	}
	c.store.Set(c.key, append(items, rec))
	return true
}

// Modify applies fn to the record with the given id and persists the result.
func (c *Collection[T]) Modify(id string, fn func(*T)) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.load()
	for i := range items {
		if items[i].RecordID() != id {
			continue
		}
		fn(&items[i])
		c.store.Set(c.key, items)
		return items[i], true
	}
	var zero T
	return zero, false
}

// Remove deletes the record with the given id and reports whether it existed.
func (c *Collection[T]) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.load()
	kept := items[:0]
	for _, rec := range items {
		if rec.RecordID() != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(items) {
		return false
	}
	c.store.Set(c.key, kept)
	return true
}

// SeedIfEmpty stores records only when the slot holds nothing yet.
func (c *Collection[T]) SeedIfEmpty(records []T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.load()) > 0 {
		return false
	}
	c.store.Set(c.key, records)
	return true
}

// Len returns the number of stored records.
func (c *Collection[T]) Len() int {
	return len(c.All())
}

// Option configures a repository.
type Option func(*options)

type options struct {
	now func() time.Time
	log logrus.FieldLogger
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the repository logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// touch returns the updated_at for a record last stamped at prev.
// The result is strictly after prev even when the clock has not advanced.
func touch(prev, now time.Time) time.Time {
	now = now.UTC()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
