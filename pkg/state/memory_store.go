package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store keyed by Ref.Identifier. Snapshots are
// stored as given; callers must not mutate them after saving.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[T]
}

type memoryRecord[T any] struct {
	snapshot T
	meta     Meta
}

// NewMemoryStore returns an empty store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: map[string]memoryRecord[T]{}}
}

func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return record.snapshot, cloneMeta(record.meta), true, nil
}

func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.records[key].meta.ETag
	if err := checkETag(meta.ETag, current); err != nil {
		return Meta{}, err
	}
	saved := cloneMeta(meta)
	saved.ETag = nextETag(current)
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = time.Now().UTC()
	}
	s.records[key] = memoryRecord[T]{snapshot: snapshot, meta: saved}
	return cloneMeta(saved), nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
