package collector

import (
	"context"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
)

// Source defines the interface for reading raw run documents from an
// upstream store
type Source interface {
	// Name identifies the source in config and archives
	Name() string

	// ListCouncils returns every council the store holds documents for, sorted
	ListCouncils(ctx context.Context) ([]string, error)

	// FetchDocuments returns the raw documents holding runs for a council.
	// It returns a NOT_FOUND error when no document exists, and a
	// FETCH_FAILED error for any other failure.
	FetchDocuments(ctx context.Context, councilID string) ([]domain.Document, error)

	// ResolveDetail returns the detail document behind a reference key,
	// or nil, nil when it does not exist
	ResolveDetail(ctx context.Context, key string) (*domain.RunLogDetail, error)
}

// ExpiryChecker reports whether a council's electoral term has ended
type ExpiryChecker interface {
	IsExpired(ctx context.Context, councilID string) (bool, error)
}

// NeverExpired is the ExpiryChecker used when no directory is configured
type NeverExpired struct{}

// IsExpired implements ExpiryChecker
func (NeverExpired) IsExpired(context.Context, string) (bool, error) {
	return false, nil
}
