package storage

import (
	"context"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
)

// Storage is the abstract interface for the aggregation archive
type Storage interface {
	// SaveAggregation archives a finished pass. The ID must be set.
	SaveAggregation(ctx context.Context, agg *domain.Aggregation) error

	// LatestAggregation returns the newest pass, or a NOT_FOUND error when
	// the archive is empty
	LatestAggregation(ctx context.Context) (*domain.Aggregation, error)

	// GetAggregation returns one pass by ID
	GetAggregation(ctx context.Context, id string) (*domain.Aggregation, error)

	// ListAggregations returns up to limit summaries, newest first
	ListAggregations(ctx context.Context, limit int) ([]domain.AggregationSummary, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
