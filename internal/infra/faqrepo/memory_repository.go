package faqrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/campus-faq/internal/domain/faq"
)

// MemoryRepository is an in-memory EntryRepository used for tests/dev.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64

	entries map[int64]faq.KnowledgeEntry
}

// NewMemoryRepository constructs a repo backed by memory.
func NewMemoryRepository(seed ...faq.KnowledgeEntry) *MemoryRepository {
	r := &MemoryRepository{
		nextID:  1,
		entries: make(map[int64]faq.KnowledgeEntry, len(seed)),
	}
	for _, entry := range seed {
		r.entries[entry.ID] = entry
		if entry.ID >= r.nextID {
			r.nextID = entry.ID + 1
		}
	}
	return r
}

// ListEntries implements faq.EntrySource.
func (r *MemoryRepository) ListEntries(_ context.Context) ([]faq.KnowledgeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]faq.KnowledgeEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetEntry implements faq.EntryRepository.
func (r *MemoryRepository) GetEntry(_ context.Context, id int64) (faq.KnowledgeEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok, nil
}

// CreateEntry implements faq.EntryRepository.
func (r *MemoryRepository) CreateEntry(_ context.Context, in faq.EntryInput) (faq.KnowledgeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++

	entry := faq.KnowledgeEntry{
		ID:       id,
		Question: in.Question,
		Answer:   in.Answer,
		Category: in.Category,
	}
	r.entries[id] = entry
	return entry, nil
}

// UpdateEntry implements faq.EntryRepository.
func (r *MemoryRepository) UpdateEntry(_ context.Context, id int64, in faq.EntryInput) (faq.KnowledgeEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return faq.KnowledgeEntry{}, false, nil
	}
	entry := faq.KnowledgeEntry{ID: id, Question: in.Question, Answer: in.Answer, Category: in.Category}
	r.entries[id] = entry
	return entry, true, nil
}

// DeleteEntry implements faq.EntryRepository.
func (r *MemoryRepository) DeleteEntry(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false, nil
	}
	delete(r.entries, id)
	return true, nil
}

var _ faq.EntryRepository = (*MemoryRepository)(nil)
