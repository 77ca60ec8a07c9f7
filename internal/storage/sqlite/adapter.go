package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
	"github.com/lgsf-dashboard/logbooks/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS aggregations (
		id TEXT PRIMARY KEY,
		generated_at TIMESTAMP NOT NULL,
		source TEXT NOT NULL,
		window_policy TEXT NOT NULL,
		logbook_count INTEGER NOT NULL,
		failing_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		logbooks TEXT NOT NULL,
		failing TEXT NOT NULL,
		failed_councils TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_aggregations_generated_at ON aggregations(generated_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveAggregation archives a finished pass
func (s *sqliteStorage) SaveAggregation(ctx context.Context, agg *domain.Aggregation) error {
	if agg.ID == "" {
		return apperrors.NewBadRequestError("aggregation id is required")
	}
	p, err := storage.EncodePayload(agg)
	if err != nil {
		return err
	}

	query := `
		INSERT OR REPLACE INTO aggregations (id, generated_at, source, window_policy,
			logbook_count, failing_count, failed_count, logbooks, failing, failed_councils)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
func (s *sqliteStorage) LatestAggregation(ctx context.Context) (*domain.Aggregation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, generated_at, source, window_policy, logbooks, failing, failed_councils
		FROM aggregations
		ORDER BY generated_at DESC, rowid DESC
		LIMIT 1
	`)
	return scanAggregation(row, "aggregation")
}

// GetAggregation returns one pass by ID
func (s *sqliteStorage) GetAggregation(ctx context.Context, id string) (*domain.Aggregation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, generated_at, source, window_policy, logbooks, failing, failed_councils
		FROM aggregations
		WHERE id = ?
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
func (s *sqliteStorage) ListAggregations(ctx context.Context, limit int) ([]domain.AggregationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generated_at, source, window_policy, logbook_count, failing_count, failed_count
		FROM aggregations
		ORDER BY generated_at DESC, rowid DESC
		LIMIT ?
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
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
