package faq

import "context"

// EntryRepository is the record store holding the knowledge base.
type EntryRepository interface {
	EntrySource
	GetEntry(ctx context.Context, id int64) (KnowledgeEntry, bool, error)
	CreateEntry(ctx context.Context, in EntryInput) (KnowledgeEntry, error)
	UpdateEntry(ctx context.Context, id int64, in EntryInput) (KnowledgeEntry, bool, error)
	DeleteEntry(ctx context.Context, id int64) (bool, error)
}

// ReindexNotifier tells the engine's owner that the record store changed.
// Implementations decide whether the rebuild runs in-process or fans out.
type ReindexNotifier interface {
	Notify(ctx context.Context, reason string) error
}
