// Package hashtable is a chained hash table of string keys and values with
// per-entry expiry.
//
// Expired entries are never swept in the background. They stay in memory
// until Get, Keys or a resize observes them. A Table is not safe for
// concurrent use; callers serialize access (see pkg/kv).
package hashtable

import (
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DefaultSize = 8

	// MaxLoadFactor is the count/size ratio above which Set grows the table.
	MaxLoadFactor = 0.7
)

type entry struct {
	key      string
	value    string
	expireAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && e.expireAt.Before(now)
}

type bucket []entry

// Table is the storage engine. The zero value is not usable; call New.
type Table struct {
	buckets    []bucket
	size       int
	count      int
	defaultTTL time.Duration

	hash     Hasher
	clock    clock.Clock
	onResize func(oldSize, newSize, dropped int)
	onExpire func(key string)
}

// Stats is a point-in-time view of the table. Count may include entries that
// have expired but were not swept yet.
type Stats struct {
	Size       int
	Count      int
	LoadFactor float64
	DefaultTTL time.Duration // zero when TTL is disabled
}

type Option func(*Table)

// WithSize sets the initial number of buckets. Non-positive values keep
// DefaultSize.
func WithSize(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.size = n
		}
	}
}

// WithDefaultTTL sets the TTL applied on every Set. Zero or negative
// disables expiry.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(t *Table) {
		if ttl < 0 {
			ttl = 0
		}
		t.defaultTTL = ttl
	}
}

func WithHasher(h Hasher) Option {
	return func(t *Table) {
		if h != nil {
			t.hash = h
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(t *Table) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithResizeHook registers fn to run after every resize with the old and new
// bucket counts and the number of expired entries dropped while rehashing.
func WithResizeHook(fn func(oldSize, newSize, dropped int)) Option {
	return func(t *Table) { t.onResize = fn }
}

// WithExpireHook registers fn to run for each expired entry that is removed
// lazily.
func WithExpireHook(fn func(key string)) Option {
	return func(t *Table) { t.onExpire = fn }
}

func New(opts ...Option) *Table {
	t := &Table{
		size:  DefaultSize,
		hash:  Additive,
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.buckets = make([]bucket, t.size)
	return t
}

func (t *Table) index(key string) int {
	return int(t.hash(key) % uint64(t.size))
}

func (t *Table) deadline() time.Time {
	if t.defaultTTL <= 0 {
		return time.Time{}
	}
	return t.clock.Now().Add(t.defaultTTL)
}

// Set inserts or overwrites key. An overwrite always refreshes the deadline,
// even when value is unchanged.
func (t *Table) Set(key, value string) {
	idx := t.index(key)
	b := t.buckets[idx]
	for i := range b {
		if b[i].key == key {
			b[i].value = value
			b[i].expireAt = t.deadline()
			return
		}
	}
	t.buckets[idx] = append(b, entry{key: key, value: value, expireAt: t.deadline()})
	t.count++

	if float64(t.count)/float64(t.size) > MaxLoadFactor {
		t.resize()
	}
}

// Get returns the value for key. Finding the key expired removes it.
func (t *Table) Get(key string) (string, bool) {
	idx := t.index(key)
	b := t.buckets[idx]
	for i := range b {
		if b[i].key != key {
			continue
		}
		if b[i].expired(t.clock.Now()) {
			t.removeAt(idx, i)
			t.expire(key)
			return "", false
		}
		return b[i].value, true
	}
	return "", false
}

// Delete removes key whether or not it has expired and reports whether it
// was present.
func (t *Table) Delete(key string) bool {
	idx := t.index(key)
	b := t.buckets[idx]
	for i := range b {
		if b[i].key == key {
			t.removeAt(idx, i)
			return true
		}
	}
	return false
}

// Keys returns every live key in bucket order, removing expired entries it
// walks past.
func (t *Table) Keys() []string {
	now := t.clock.Now()
	keys := make([]string, 0, t.count)
	for idx, b := range t.buckets {
		if len(b) == 0 {
			continue
		}
		live := b[:0]
		for _, e := range b {
			if e.expired(now) {
				t.count--
				t.expire(e.key)
				continue
			}
			live = append(live, e)
			keys = append(keys, e.key)
		}
		clear(b[len(live):])
		t.buckets[idx] = live
	}
	return keys
}

// Clear drops every entry. The bucket count is kept.
func (t *Table) Clear() {
	t.buckets = make([]bucket, t.size)
	t.count = 0
}

func (t *Table) Stats() Stats {
	s := Stats{Size: t.size, Count: t.count, DefaultTTL: t.defaultTTL}
	if t.size > 0 {
		s.LoadFactor = float64(t.count) / float64(t.size)
	}
	return s
}

// resize doubles the bucket count and rehashes every entry. Deadlines are
// carried over unchanged; entries already expired are dropped.
func (t *Table) resize() {
	old := t.buckets
	oldSize := t.size
	t.size *= 2
	t.buckets = make([]bucket, t.size)

	now := t.clock.Now()
	dropped := 0
	for _, b := range old {
		for _, e := range b {
			if e.expired(now) {
				t.count--
				dropped++
				t.expire(e.key)
				continue
			}
			idx := t.index(e.key)
			t.buckets[idx] = append(t.buckets[idx], e)
		}
	}

	if t.onResize != nil {
		t.onResize(oldSize, t.size, dropped)
	}
}

func (t *Table) removeAt(idx, i int) {
	b := t.buckets[idx]
	copy(b[i:], b[i+1:])
	b[len(b)-1] = entry{}
	b = b[:len(b)-1]
	if len(b) == 0 {
		b = nil
	}
	t.buckets[idx] = b
	t.count--
}

func (t *Table) expire(key string) {
	if t.onExpire != nil {
		t.onExpire(key)
	}
}
