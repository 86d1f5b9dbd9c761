package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS recitation_analyses (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	surah_number INTEGER NOT NULL DEFAULT 0,
	ayah_range   TEXT NOT NULL DEFAULT '',
	analysis     JSONB,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS recitation_analyses_status_idx ON recitation_analyses (status, created_at);
`

type PostgresAnalysisRepository struct {
	db *sql.DB
}

func NewPostgresAnalysisRepository(db *sql.DB) *PostgresAnalysisRepository {
	return &PostgresAnalysisRepository{db: db}
}

// Migrate creates the recitation_analyses table if it does not exist.
func (r *PostgresAnalysisRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate recitation_analyses: %w", err)
	}
	return nil
}

func (r *PostgresAnalysisRepository) Create(ctx context.Context, rec *domain.AnalysisRecord) error {
	if rec.Status == "" {
		rec.Status = domain.AnalysisPending
	}

	query := `
		INSERT INTO recitation_analyses (id, status, surah_number, ayah_range)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, rec.ID, rec.Status, rec.SurahNumber, rec.AyahRange).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("analysis %s already exists", rec.ID)
	}
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	return nil
}

func (r *PostgresAnalysisRepository) Get(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	query := `
		SELECT id, status, surah_number, ayah_range, analysis, error, created_at, updated_at
		FROM recitation_analyses
		WHERE id = $1
	`

	var (
		rec     domain.AnalysisRecord
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Status,
		&rec.SurahNumber,
		&rec.AyahRange,
		&payload,
		&rec.Error,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}

	if len(payload) > 0 {
		var a domain.Analysis
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("decode analysis %s: %w", id, err)
		}
		rec.Analysis = &a
	}

	return &rec, nil
}

func (r *PostgresAnalysisRepository) Complete(ctx context.Context, id string, analysis *domain.Analysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	query := `
		UPDATE recitation_analyses
		SET status = $2, analysis = $3, error = '', updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, id, query, id, domain.AnalysisCompleted, payload)
}

func (r *PostgresAnalysisRepository) Fail(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE recitation_analyses
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, id, query, id, domain.AnalysisFailed, reason)
}

func (r *PostgresAnalysisRepository) exec(ctx context.Context, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("analysis %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
