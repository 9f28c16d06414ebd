package router

import (
	"context"
	"sync"
	"time"
)

// KnownIndices remembers index names confirmed to exist
type KnownIndices interface {
	Known(ctx context.Context, name string) bool
	MarkKnown(ctx context.Context, name string)
}

// MemoryIndices is a process-lifetime KnownIndices
type MemoryIndices struct {
	names sync.Map
}

// NewMemoryIndices creates an empty in-memory cache
func NewMemoryIndices() *MemoryIndices {
	return &MemoryIndices{}
}

// Known implements KnownIndices
func (m *MemoryIndices) Known(_ context.Context, name string) bool {
	_, ok := m.names.Load(name)
	return ok
}

// MarkKnown implements KnownIndices
func (m *MemoryIndices) MarkKnown(_ context.Context, name string) {
	m.names.Store(name, struct{}{})
}

// Len returns the number of cached names
func (m *MemoryIndices) Len() int {
	n := 0
	m.names.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Prune drops names whose date suffix is before the cut-off and
// returns how many were removed. Names without a date are kept.
func (m *MemoryIndices) Prune(before time.Time) int {
	cutoff := before.UTC().Format(DateLayout)
	removed := 0
	m.names.Range(func(key, _ any) bool {
		name := key.(string)
		date, ok := indexDate(name)
		if ok && date < cutoff {
			m.names.Delete(name)
			removed++
		}
		return true
	})
	return removed
}

// indexDate extracts the YYYY-MM-DD suffix of an index name
func indexDate(name string) (string, bool) {
	n := len(DateLayout)
	if len(name) <= n || name[len(name)-n-1] != '-' {
		return "", false
	}
	date := name[len(name)-n:]
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", false
	}
	return date, true
}
