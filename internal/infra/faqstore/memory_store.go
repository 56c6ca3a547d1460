package faqstore

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/campus-faq/internal/domain/faq"
)

// MemoryStore is an in-memory implementation of the FAQ store for tests/dev.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	unknown  map[int64]faq.UnknownQuestion
	trending map[string]int64
	displays map[string]string
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		unknown:  make(map[int64]faq.UnknownQuestion),
		trending: make(map[string]int64),
		displays: make(map[string]string),
	}
}

// RecordUnknown implements faq.Store.
func (s *MemoryStore) RecordUnknown(_ context.Context, q faq.UnknownQuestion) (faq.UnknownQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextID
	q.Answered = false
	s.nextID++
	s.unknown[q.ID] = q
	return q, nil
}

// GetUnknown implements faq.Store.
func (s *MemoryStore) GetUnknown(_ context.Context, id int64) (faq.UnknownQuestion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.unknown[id]
	return q, ok, nil
}

// ListUnknown returns unanswered questions, newest first.
func (s *MemoryStore) ListUnknown(_ context.Context, limit int) ([]faq.UnknownQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]faq.UnknownQuestion, 0, len(s.unknown))
	for _, q := range s.unknown {
		if !q.Answered {
			items = append(items, q)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].AskedAt.Equal(items[j].AskedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].AskedAt.After(items[j].AskedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// PendingUnknown counts unanswered questions.
func (s *MemoryStore) PendingUnknown(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := 0
	for _, q := range s.unknown {
		if !q.Answered {
			pending++
		}
	}
	return pending, nil
}

// MarkAnswered implements faq.Store.
func (s *MemoryStore) MarkAnswered(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.unknown[id]; ok {
		q.Answered = true
		s.unknown[id] = q
	}
	return nil
}

// IncrementQuery bumps the counter for a canonical query and records a display string.
func (s *MemoryStore) IncrementQuery(_ context.Context, canonical, display string) error {
	if canonical == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trending[canonical]++
	if _, exists := s.displays[canonical]; !exists {
		s.displays[canonical] = display
	}
	return nil
}

// TopQueries returns the most frequent canonical questions.
func (s *MemoryStore) TopQueries(_ context.Context, limit int) ([]faq.TrendingQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = len(s.trending)
	}
	items := make([]faq.TrendingQuery, 0, len(s.trending))
	for canonical, count := range s.trending {
		display := s.displays[canonical]
		if display == "" {
			display = canonical
		}
		items = append(items, faq.TrendingQuery{Query: display, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Query < items[j].Query
		}
		return items[i].Count > items[j].Count
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

var _ faq.Store = (*MemoryStore)(nil)
