package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

type PassageRepository struct {
	db *sql.DB
}

func NewPassageRepository(db *sql.DB) *PassageRepository {
	return &PassageRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *PassageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS evidence_passages (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	text TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_passages_case ON evidence_passages(case_id);
CREATE INDEX IF NOT EXISTS idx_evidence_passages_document ON evidence_passages(document_id, position);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ListPassages pages the corpus in id order starting after afterID.
func (r *PassageRepository) ListPassages(ctx context.Context, afterID string, limit int) ([]domain.Passage, error) {
	if limit <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list passages", fmt.Errorf("limit must be positive, got %d", limit))
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, case_id, document_id, kind, position, text, updated_at
FROM evidence_passages
WHERE id > $1
ORDER BY id
LIMIT $2
`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	passages := make([]domain.Passage, 0, limit)
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	return passages, nil
}

func (r *PassageRepository) GetPassage(ctx context.Context, id string) (*domain.Passage, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, case_id, document_id, kind, position, text, updated_at
FROM evidence_passages
WHERE id = $1
`, id)
	p, err := scanPassage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPassageNotFound, "get passage", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return &p, nil
}

// GetPayloads returns payloads keyed by passage id. Unknown ids are absent from the map.
func (r *PassageRepository) GetPayloads(ctx context.Context, ids []string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, case_id, document_id, kind, position, text, updated_at
FROM evidence_passages
WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, fmt.Errorf("query payloads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p.Payload()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payloads: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPassage(row rowScanner) (domain.Passage, error) {
	var (
		p    domain.Passage
		kind string
	)
	if err := row.Scan(&p.ID, &p.CaseID, &p.DocumentID, &kind, &p.Position, &p.Text, &p.UpdatedAt); err != nil {
		return domain.Passage{}, fmt.Errorf("scan passage: %w", err)
	}
	p.Kind = domain.EvidenceKind(kind)
	return p, nil
}
