package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v55/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

// GitHubConfig locates the logbook repository
type GitHubConfig struct {
	Token   string
	Owner   string
	Repo    string
	Path    string // directory holding one <council>.json per council
	Ref     string // branch, tag or sha; empty is the default branch
	BaseURL string // API root override, for GitHub Enterprise and tests
}

// githubSource implements Source over a repository of per-council logbooks
type githubSource struct {
	client      *github.Client
	cfg         GitHubConfig
	rateLimiter RateLimiter
	logger      *zap.Logger
}

// NewGitHubSource creates a new logbook repository source
func NewGitHubSource(cfg GitHubConfig, logger *zap.Logger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var tc *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token},
		)
		tc = oauth2.NewClient(context.Background(), ts)
	}
	client := github.NewClient(tc)

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client.BaseURL = base
	}

	return &githubSource{
		client:      client,
		cfg:         cfg,
		rateLimiter: NewRateLimiter(100*time.Millisecond, logger),
		logger:      logger,
	}, nil
}

// Name implements Source
func (c *githubSource) Name() string {
	return "github"
}

// ListCouncils lists the logbook directory. Every *.json file is one council.
func (c *githubSource) ListCouncils(ctx context.Context) ([]string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	_, entries, resp, err := c.client.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, c.cfg.Path, c.contentOptions())
	if err != nil {
		return nil, c.classify(fmt.Sprintf("logbook directory %s", c.cfg.Path), resp, err)
	}
	c.updateRateLimitFromResponse(resp)

	var ids []string
	for _, entry := range entries {
		name := entry.GetName()
		if entry.GetType() != "file" || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// FetchDocuments reads <path>/<council>.json
func (c *githubSource) FetchDocuments(ctx context.Context, councilID string) ([]domain.Document, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	filePath := path.Join(c.cfg.Path, councilID+".json")
	resource := fmt.Sprintf("logbook %s", filePath)
	c.logger.Debug("Fetching logbook", zap.String("council_id", councilID), zap.String("path", filePath))

	file, _, resp, err := c.client.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, filePath, c.contentOptions())
	if err != nil {
		return nil, c.classify(resource, resp, err)
	}
	c.updateRateLimitFromResponse(resp)
	if file == nil {
		return nil, apperrors.NewNotFoundError(resource)
	}

	data, err := c.fileBytes(ctx, file, filePath)
	if err != nil {
		return nil, apperrors.NewFetchError(resource, err)
	}

	doc, err := domain.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resource, err)
	}
	return []domain.Document{doc}, nil
}

// ResolveDetail implements Source. Council logbooks carry their full log
// inline, so there is never a detail document.
func (c *githubSource) ResolveDetail(context.Context, string) (*domain.RunLogDetail, error) {
	return nil, nil
}

// fileBytes returns the decoded file. The contents API answers encoding
// "none" for files over 1MB, which then need the raw download endpoint.
func (c *githubSource) fileBytes(ctx context.Context, file *github.RepositoryContent, filePath string) ([]byte, error) {
	if file.GetEncoding() != "none" {
		content, err := file.GetContent()
		if err != nil {
			return nil, err
		}
		return []byte(content), nil
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	rc, resp, err := c.client.Repositories.DownloadContents(ctx, c.cfg.Owner, c.cfg.Repo, filePath, c.contentOptions())
	if err != nil {
		return nil, err
	}
	c.updateRateLimitFromResponse(resp)
	defer rc.Close()
	return io.ReadAll(rc)
}

func (c *githubSource) contentOptions() *github.RepositoryContentGetOptions {
	if c.cfg.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: c.cfg.Ref}
}

// classify separates a not-found from rate limiting and other failures
func (c *githubSource) classify(resource string, resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr):
		c.rateLimiter.UpdateLimit(rateErr.Rate.Remaining, rateErr.Rate.Reset.Time)
		return &apperrors.AppError{Code: apperrors.ErrCodeRateLimited, Message: resource, Err: err}
	case errors.As(err, &abuseErr):
		return &apperrors.AppError{Code: apperrors.ErrCodeRateLimited, Message: resource, Err: err}
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(resource)
	default:
		return apperrors.NewFetchError(resource, err)
	}
}

// updateRateLimitFromResponse updates the rate limiter from API response
func (c *githubSource) updateRateLimitFromResponse(resp *github.Response) {
	if resp != nil && resp.Rate.Limit > 0 {
		c.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}
