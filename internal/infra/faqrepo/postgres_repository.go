package faqrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/campus-faq/internal/domain/faq"
)

const schema = `
	CREATE TABLE IF NOT EXISTS faqs (
		id          BIGSERIAL PRIMARY KEY,
		question    TEXT NOT NULL,
		answer      TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT 'Uncategorized',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresRepository implements faq.EntryRepository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the faqs table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// ListEntries returns every knowledge entry ordered by id.
func (r *PostgresRepository) ListEntries(ctx context.Context) ([]faq.KnowledgeEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, question, answer, category
		FROM faqs
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []faq.KnowledgeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetEntry fetches one entry by id.
func (r *PostgresRepository) GetEntry(ctx context.Context, id int64) (faq.KnowledgeEntry, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, question, answer, category
		FROM faqs
		WHERE id = $1
	`, id)
	return scanOptional(row)
}

// CreateEntry inserts a new FAQ row.
func (r *PostgresRepository) CreateEntry(ctx context.Context, in faq.EntryInput) (faq.KnowledgeEntry, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO faqs (question, answer, category)
		VALUES ($1, $2, $3)
		RETURNING id, question, answer, category
	`, in.Question, in.Answer, in.Category)
	return scanEntry(row)
}

// UpdateEntry rewrites the mutable columns of an entry.
func (r *PostgresRepository) UpdateEntry(ctx context.Context, id int64, in faq.EntryInput) (faq.KnowledgeEntry, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE faqs
		SET question = $1, answer = $2, category = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, question, answer, category
	`, in.Question, in.Answer, in.Category, id)
	return scanOptional(row)
}

// DeleteEntry removes an entry, reporting whether it existed.
func (r *PostgresRepository) DeleteEntry(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM faqs WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (faq.KnowledgeEntry, error) {
	var entry faq.KnowledgeEntry
	if err := row.Scan(&entry.ID, &entry.Question, &entry.Answer, &entry.Category); err != nil {
		return faq.KnowledgeEntry{}, err
	}
	return entry, nil
}

func scanOptional(row rowScanner) (faq.KnowledgeEntry, bool, error) {
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return faq.KnowledgeEntry{}, false, nil
		}
		return faq.KnowledgeEntry{}, false, err
	}
	return entry, true, nil
}

var _ faq.EntryRepository = (*PostgresRepository)(nil)
