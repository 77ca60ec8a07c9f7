package logbook

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
	"github.com/lgsf-dashboard/logbooks/internal/normalizer"
)

// DetailResolver fetches the detail document behind a failed run's reference.
// It returns nil, nil when the referenced document does not exist.
type DetailResolver interface {
	ResolveDetail(ctx context.Context, key string) (*domain.RunLogDetail, error)
}

// ParsePolicy decides what a malformed run entry does to its council
type ParsePolicy string

const (
	// SkipInvalid drops the offending run and records it in the result
	SkipInvalid ParsePolicy = "skip"
	// FailCouncil fails the whole council's logbook
	FailCouncil ParsePolicy = "fail"
)

// SkippedRun is a run entry that was dropped under SkipInvalid
type SkippedRun struct {
	Index int // position among the council's records, in source order
	Err   error
}

// Result is the outcome of building one council's logbook
type Result struct {
	LogBook domain.LogBook
	Skipped []SkippedRun
}

// Builder groups normalized runs into a council's LogBook
type Builder struct {
	window   Window
	policy   ParsePolicy
	resolver DetailResolver
	logger   *zap.Logger
}

// Option configures a Builder
type Option func(*Builder)

// WithParsePolicy sets the malformed-entry policy. The default is SkipInvalid.
func WithParsePolicy(p ParsePolicy) Option {
	return func(b *Builder) { b.policy = p }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a new builder. resolver may be nil when the source
// never carries detail references.
func NewBuilder(window Window, resolver DetailResolver, opts ...Option) *Builder {
	b := &Builder{
		window:   window,
		policy:   SkipInvalid,
		resolver: resolver,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Window returns the builder's retention policy
func (b *Builder) Window() Window {
	return b.window
}

// Build produces the logbook for councilID from its raw documents. found is
// false when the source had no document at all for the council; docs is then
// ignored and the logbook is marked missing.
//
// A logbook with no retained runs is still returned. Errors are fetch failures
// from the detail resolver, or a parse error under FailCouncil.
func (b *Builder) Build(ctx context.Context, councilID string, docs []domain.Document, found bool) (Result, error) {
	if !found {
		return Result{LogBook: domain.MissingLogBook(councilID)}, nil
	}

	var (
		runs    []domain.LogRun
		skipped []SkippedRun
		index   int
	)
	for _, doc := range docs {
		for _, record := range doc.RecordsFor(councilID) {
			run, err := b.normalize(ctx, councilID, record)
			if err != nil {
				if !apperrors.IsParseError(err) {
					return Result{}, err
				}
				if b.policy == FailCouncil {
					return Result{}, fmt.Errorf("council %s run %d: %w", councilID, index, err)
				}
				b.logParseError(councilID, index, err)
				skipped = append(skipped, SkippedRun{Index: index, Err: err})
			} else {
				runs = append(runs, run)
			}
			index++
		}
	}

	return Result{
		LogBook: domain.LogBook{
			CouncilID: councilID,
			LogRuns:   b.window.Apply(runs),
			Order:     b.window.Order(),
		},
		Skipped: skipped,
	}, nil
}

func (b *Builder) normalize(ctx context.Context, councilID string, record domain.RawRecord) (domain.LogRun, error) {
	var detail *domain.RunLogDetail
	if key := record.DetailKey(); key != "" && b.resolver != nil {
		b.logger.Debug("Fetching RunLog", zap.String("council_id", councilID), zap.String("key", key))
		d, err := b.resolver.ResolveDetail(ctx, key)
		switch {
		case apperrors.IsParseError(err):
			// the summary still carries the failure
			b.logger.Warn("Ignoring malformed RunLog",
				zap.String("council_id", councilID), zap.String("key", key), zap.Error(err))
			d = nil
		case err != nil:
			return domain.LogRun{}, fmt.Errorf("council %s: resolve %s: %w", councilID, key, err)
		case d == nil:
			b.logger.Info("RunLog not found",
				zap.String("council_id", councilID), zap.String("key", key))
		}
		detail = d
	}
	return normalizer.Normalize(record, detail)
}

func (b *Builder) logParseError(councilID string, index int, err error) {
	fields := []zap.Field{zap.String("council_id", councilID), zap.Int("run", index)}
	if pe, ok := apperrors.AsParseError(err); ok {
		fields = append(fields, zap.String("field", pe.Field), zap.String("value", pe.Value))
	}
	b.logger.Warn("Skipping malformed run", append(fields, zap.Error(err))...)
}
