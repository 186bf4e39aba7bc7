package kv

import (
	"strings"
	"sync"

	"github.com/ryandielhenn/cachelab/pkg/hashtable"
)

const DefaultScanLimit = 10

// Store is the process-wide cache. It owns one hashtable.Table and runs every
// operation on it under a single lock, so each call (including a resize it
// triggers) completes before the next one starts.
type Store struct {
	mu  sync.Mutex
	tbl *hashtable.Table
}

// ScanResult is one page of live keys. Cursor is where the next page starts,
// or 0 once the last page has been returned.
type ScanResult struct {
	Cursor int
	Total  int
	Keys   []string
}

func NewStore(opts ...hashtable.Option) *Store {
	return &Store{tbl: hashtable.New(opts...)}
}

func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tbl.Set(key, value)
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tbl.Get(key)
}

// Update overwrites key only if it is currently live. It reports whether the
// key was found.
func (s *Store) Update(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tbl.Get(key); !ok {
		return false
	}
	s.tbl.Set(key, value)
	return true
}

func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tbl.Delete(key)
}

func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tbl.Keys()
}

// KeysWithPrefix returns the live keys starting with prefix. An empty prefix
// matches everything.
func (s *Store) KeysWithPrefix(prefix string) []string {
	keys := s.Keys()
	if prefix == "" {
		return keys
	}
	out := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tbl.Clear()
}

func (s *Store) Stats() hashtable.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tbl.Stats()
}

// Len is the entry count as of the last sweep.
func (s *Store) Len() int {
	return s.Stats().Count
}

// Scan pages through the live keys. A negative cursor is treated as 0 and a
// non-positive limit as DefaultScanLimit.
func (s *Store) Scan(cursor, limit int) ScanResult {
	if cursor < 0 {
		cursor = 0
	}
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	keys := s.Keys()
	total := len(keys)
	if total == 0 {
		return ScanResult{Keys: []string{}}
	}

	start := min(cursor, total)
	end := total
	if limit < total-start {
		end = start + limit
	}
	page := keys[start:end]

	next := cursor + len(page)
	if next >= total {
		next = 0
	}
	return ScanResult{Cursor: next, Total: total, Keys: page}
}
