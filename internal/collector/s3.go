package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

// S3Config holds configuration for the run-report bucket
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for MinIO, R2, etc.
	AccessKeyID     string // empty uses the default credential chain
	SecretAccessKey string
	Prefix          string // run reports live under this prefix
	ReportCount     int    // newest reports to aggregate
}

// s3API is the subset of the S3 client used here
type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// RunReportSource implements Source over periodic run reports in S3.
// Load must be called before the Source methods.
type RunReportSource struct {
	client s3API
	cfg    S3Config
	logger *zap.Logger

	mu      sync.RWMutex
	reports []*domain.RunReport
	loaded  bool
}

// NewS3Source creates a run-report source backed by S3
func NewS3Source(ctx context.Context, cfg S3Config, logger *zap.Logger) (*RunReportSource, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return newRunReportSource(client, cfg, logger), nil
}

func newRunReportSource(client s3API, cfg S3Config, logger *zap.Logger) *RunReportSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReportCount <= 0 {
		cfg.ReportCount = 10
	}
	return &RunReportSource{client: client, cfg: cfg, logger: logger}
}

// Name implements Source
func (s *RunReportSource) Name() string {
	return "s3"
}

// Load fetches the newest ReportCount run reports, newest first. A report
// that cannot be read or decoded is logged and left out.
func (s *RunReportSource) Load(ctx context.Context) error {
	var objects []types.Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.Prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return apperrors.NewFetchError(fmt.Sprintf("run reports s3://%s/%s", s.cfg.Bucket, s.cfg.Prefix), err)
		}
		objects = append(objects, page.Contents...)
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return aws.ToTime(objects[i].LastModified).After(aws.ToTime(objects[j].LastModified))
	})
	if len(objects) > s.cfg.ReportCount {
		objects = objects[:s.cfg.ReportCount]
	}

	reports := make([]*domain.RunReport, 0, len(objects))
	for _, obj := range objects {
		key := aws.ToString(obj.Key)
		report, err := s.loadReport(ctx, key)
		if err != nil {
			s.logger.Warn("Error loading report", zap.String("key", key), zap.Error(err))
			continue
		}
		s.logger.Info("Loaded report", zap.String("key", key), zap.Int("scrapers", len(report.Scrapers)))
		if report.Unattributed > 0 {
			s.logger.Warn("Dropped entries with no readable council", zap.String("key", key), zap.Int("entries", report.Unattributed))
		}
		reports = append(reports, report)
	}
	if len(objects) == 0 {
		s.logger.Warn("No run reports found", zap.String("bucket", s.cfg.Bucket), zap.String("prefix", s.cfg.Prefix))
	}

	s.mu.Lock()
	s.reports = reports
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Reports returns the loaded reports, newest first
func (s *RunReportSource) Reports() []*domain.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports
}

// ListCouncils returns every council named in the loaded reports
func (s *RunReportSource) ListCouncils(context.Context) ([]string, error) {
	reports, err := s.loadedReports()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, report := range reports {
		for _, id := range report.Councils() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// FetchDocuments returns the loaded reports that mention the council
func (s *RunReportSource) FetchDocuments(_ context.Context, councilID string) ([]domain.Document, error) {
	reports, err := s.loadedReports()
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	for _, report := range reports {
		if len(report.RecordsFor(councilID)) > 0 {
			docs = append(docs, report)
		}
	}
	if len(docs) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("run reports for %s", councilID))
	}
	return docs, nil
}

// ResolveDetail fetches a RunLog document. A missing key is not an error.
func (s *RunReportSource) ResolveDetail(ctx context.Context, key string) (*domain.RunLogDetail, error) {
	data, err := s.getObject(ctx, key)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			s.logger.Info("RunLog not found", zap.String("key", key))
			return nil, nil
		}
		return nil, apperrors.NewFetchError(fmt.Sprintf("RunLog %s", key), err)
	}
	return domain.DecodeRunLogDetail(data)
}

func (s *RunReportSource) loadReport(ctx context.Context, key string) (*domain.RunReport, error) {
	data, err := s.getObject(ctx, key)
	if err != nil {
		return nil, err
	}
	doc, err := domain.DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	report, ok := doc.(*domain.RunReport)
	if !ok {
		return nil, apperrors.NewParseError("document", key, errors.New("not a run report"))
	}
	return report, nil
}

func (s *RunReportSource) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *RunReportSource) loadedReports() ([]*domain.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, apperrors.NewInternalError("run reports not loaded", nil)
	}
	return s.reports, nil
}
