package aggregator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lgsf-dashboard/logbooks/internal/collector"
	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
	"github.com/lgsf-dashboard/logbooks/internal/failing"
	"github.com/lgsf-dashboard/logbooks/internal/logbook"
)

// DefaultConcurrency is the number of councils fetched at once
const DefaultConcurrency = 8

// DocumentFetcher reads a council's raw documents. It returns a NOT_FOUND
// error when the council has no document at all.
type DocumentFetcher interface {
	FetchDocuments(ctx context.Context, councilID string) ([]domain.Document, error)
}

// CouncilFailure is a council left out of a pass because it could not be built
type CouncilFailure struct {
	CouncilID string
	Err       error
}

// Result is the outcome of one aggregation pass
type Result struct {
	LogBooks []domain.LogBook
	Failing  []domain.FailingEntry
	Failures []CouncilFailure
	Expired  []string
	Skipped  map[string][]logbook.SkippedRun
}

// FailedCouncils returns the ids of the councils that could not be built, in
// pass order
func (r *Result) FailedCouncils() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.CouncilID)
	}
	return ids
}

// Driver runs an aggregation pass over a list of councils
type Driver struct {
	fetcher     DocumentFetcher
	expiry      collector.ExpiryChecker
	builder     *logbook.Builder
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Driver
type Option func(*Driver)

// WithConcurrency sets how many councils are fetched at once
func WithConcurrency(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithClock sets the clock used to stamp archived passes
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// NewDriver creates a new driver. A nil expiry checker never expires anything.
func NewDriver(fetcher DocumentFetcher, expiry collector.ExpiryChecker, builder *logbook.Builder, opts ...Option) *Driver {
	if expiry == nil {
		expiry = collector.NeverExpired{}
	}
	d := &Driver{
		fetcher:     fetcher,
		expiry:      expiry,
		builder:     builder,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type outcome struct {
	result  logbook.Result
	expired bool
	err     error
}

// Run aggregates councilIDs in the given order. A council that fails to fetch
// or build is recorded in Result.Failures and the pass carries on. The only
// error returned is the context's.
func (d *Driver) Run(ctx context.Context, councilIDs []string) (*Result, error) {
	outcomes := make([]outcome, len(councilIDs))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, id := range councilIDs {
		i, id := i, id
		g.Go(func() error {
			outcomes[i] = d.council(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		LogBooks: make([]domain.LogBook, 0, len(councilIDs)),
		Skipped:  make(map[string][]logbook.SkippedRun),
	}
	for i, o := range outcomes {
		id := councilIDs[i]
		switch {
		case o.expired:
			res.Expired = append(res.Expired, id)
		case o.err != nil:
			res.Failures = append(res.Failures, CouncilFailure{CouncilID: id, Err: o.err})
		case o.result.LogBook.Empty():
			d.logger.Debug("Dropping empty logbook", zap.String("council_id", id))
		default:
			res.LogBooks = append(res.LogBooks, o.result.LogBook)
		}
		if len(o.result.Skipped) > 0 {
			res.Skipped[id] = o.result.Skipped
		}
	}
	res.Failing = failing.Extract(res.LogBooks)

	d.logger.Info("Aggregation complete",
		zap.Int("councils", len(councilIDs)),
		zap.Int("logbooks", len(res.LogBooks)),
		zap.Int("failing", len(res.Failing)),
		zap.Int("failed", len(res.Failures)),
		zap.Int("expired", len(res.Expired)))
	return res, nil
}

func (d *Driver) council(ctx context.Context, id string) outcome {
	expired, err := d.expiry.IsExpired(ctx, id)
	if err != nil {
		d.logger.Warn("Expiry check failed", zap.String("council_id", id), zap.Error(err))
		return outcome{err: err}
	}
	if expired {
		d.logger.Info("Skipping expired council", zap.String("council_id", id))
		return outcome{expired: true}
	}

	found := true
	docs, err := d.fetcher.FetchDocuments(ctx, id)
	switch {
	case apperrors.IsNotFound(err):
		d.logger.Info("No logbook document", zap.String("council_id", id))
		found = false
	case err != nil:
		d.logger.Warn("Fetch failed", zap.String("council_id", id), zap.Error(err))
		return outcome{err: err}
	}

	res, err := d.builder.Build(ctx, id, docs, found)
	if err != nil {
		d.logger.Warn("Build failed", zap.String("council_id", id), zap.Error(err))
		return outcome{err: err}
	}
	return outcome{result: res}
}

// Aggregation stamps a finished pass for archiving
func (d *Driver) Aggregation(res *Result, source string) *domain.Aggregation {
	return &domain.Aggregation{
		ID:             uuid.New().String(),
		GeneratedAt:    d.now().UTC(),
		Source:         source,
		Window:         d.builder.Window().Name(),
		LogBooks:       res.LogBooks,
		Failing:        res.Failing,
		FailedCouncils: res.FailedCouncils(),
	}
}
