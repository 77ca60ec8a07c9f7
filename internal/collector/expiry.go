package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

// directoryChecker implements ExpiryChecker against an organisation directory
// that answers GET <base>/organisations/<council>/ with {"end_date": ...}
type directoryChecker struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
	logger     *zap.Logger
}

type organisation struct {
	EndDate *string `json:"end_date"`
}

// NewExpiryChecker creates a directory-backed checker. An empty baseURL
// disables the check.
func NewExpiryChecker(baseURL string, rps float64, logger *zap.Logger) ExpiryChecker {
	if baseURL == "" {
		return NeverExpired{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rps <= 0 {
		rps = 5
	}
	return &directoryChecker{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		now:     time.Now,
		logger:  logger,
	}
}

// IsExpired reports whether the council's term ended before today. Councils
// unknown to the directory are not expired.
func (c *directoryChecker) IsExpired(ctx context.Context, councilID string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	u := fmt.Sprintf("%s/organisations/%s/", c.baseURL, url.PathEscape(councilID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, apperrors.NewFetchError("organisation "+councilID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Debug("Council not in directory", zap.String("council_id", councilID))
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, apperrors.NewRateLimitedError("organisation directory " + councilID)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, apperrors.NewFetchError("organisation "+councilID,
			fmt.Errorf("API error: %s - %s", resp.Status, string(body)))
	}

	var org organisation
	if err := json.NewDecoder(resp.Body).Decode(&org); err != nil {
		return false, apperrors.NewFetchError("organisation "+councilID, err)
	}
	if org.EndDate == nil || *org.EndDate == "" {
		return false, nil
	}

	end, err := time.Parse("2006-01-02", *org.EndDate)
	if err != nil {
		return false, apperrors.NewParseError("end_date", *org.EndDate, err)
	}
	y, m, d := c.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return end.Before(today), nil
}
