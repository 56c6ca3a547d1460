package faq

import "context"

// Store persists the caller-side artifacts of matching: unknown questions
// awaiting an answer and query popularity counters.
type Store interface {
	RecordUnknown(ctx context.Context, q UnknownQuestion) (UnknownQuestion, error)
	GetUnknown(ctx context.Context, id int64) (UnknownQuestion, bool, error)
	ListUnknown(ctx context.Context, limit int) ([]UnknownQuestion, error)
	PendingUnknown(ctx context.Context) (int, error)
	MarkAnswered(ctx context.Context, id int64) error
	IncrementQuery(ctx context.Context, canonical, display string) error
	TopQueries(ctx context.Context, limit int) ([]TrendingQuery, error)
}
