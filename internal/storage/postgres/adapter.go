package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
	"github.com/lgsf-dashboard/logbooks/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS aggregations (
		id TEXT PRIMARY KEY,
		generated_at TIMESTAMPTZ NOT NULL,
		source TEXT NOT NULL,
		window_policy TEXT NOT NULL,
		logbook_count INTEGER NOT NULL,
		failing_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		logbooks JSONB NOT NULL,
		failing JSONB NOT NULL,
		failed_councils JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_aggregations_generated_at ON aggregations(generated_at DESC);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveAggregation archives a finished pass
func (s *postgresStorage) SaveAggregation(ctx context.Context, agg *domain.Aggregation) error {
	if agg.ID == "" {
		return apperrors.NewBadRequestError("aggregation id is required")
	}
	p, err := storage.EncodePayload(agg)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO aggregations (id, generated_at, source, window_policy,
			logbook_count, failing_count, failed_count, logbooks, failing, failed_councils)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			source = EXCLUDED.source,
			window_policy = EXCLUDED.window_policy,
			logbook_count = EXCLUDED.logbook_count,
			failing_count = EXCLUDED.failing_count,
			failed_count = EXCLUDED.failed_count,
			logbooks = EXCLUDED.logbooks,
			failing = EXCLUDED.failing,
			failed_councils = EXCLUDED.failed_councils
	`
	_, err = s.db.ExecContext(ctx, query,
		agg.ID,
		agg.GeneratedAt.UTC(),
		agg.Source,
		agg.Window,
		len(agg.LogBooks),
		len(agg.Failing),
		len(agg.FailedCouncils),
		p.LogBooks,
		p.Failing,
		p.FailedCouncils,
	)
	return err
}

// LatestAggregation returns the newest pass
func (s *postgresStorage) LatestAggregation(ctx context.Context) (*domain.Aggregation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, generated_at, source, window_policy, logbooks, failing, failed_councils
		FROM aggregations
		ORDER BY generated_at DESC, created_at DESC
		LIMIT 1
	`)
	return scanAggregation(row, "aggregation")
}

// GetAggregation returns one pass by ID
func (s *postgresStorage) GetAggregation(ctx context.Context, id string) (*domain.Aggregation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, generated_at, source, window_policy, logbooks, failing, failed_councils
		FROM aggregations
		WHERE id = $1
	`, id)
	return scanAggregation(row, "aggregation "+id)
}

func scanAggregation(row *sql.Row, resource string) (*domain.Aggregation, error) {
	var agg domain.Aggregation
	var p storage.Payload
	err := row.Scan(&agg.ID, &agg.GeneratedAt, &agg.Source, &agg.Window, &p.LogBooks, &p.Failing, &p.FailedCouncils)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(resource)
	}
	if err != nil {
		return nil, err
	}
	if err := storage.DecodePayload(&agg, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", resource, err)
	}
	return &agg, nil
}

// ListAggregations returns archived pass summaries, newest first
func (s *postgresStorage) ListAggregations(ctx context.Context, limit int) ([]domain.AggregationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generated_at, source, window_policy, logbook_count, failing_count, failed_count
		FROM aggregations
		ORDER BY generated_at DESC, created_at DESC
		LIMIT $1
	`, storage.Limit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []domain.AggregationSummary{}
	for rows.Next() {
		var sum domain.AggregationSummary
		if err := rows.Scan(&sum.ID, &sum.GeneratedAt, &sum.Source, &sum.Window,
			&sum.LogBooks, &sum.Failing, &sum.FailedCouncils); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
