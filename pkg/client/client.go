package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

// Client is the API client for the logbooks server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetLogBooks retrieves every logbook of the latest pass
func (c *Client) GetLogBooks(ctx context.Context) ([]domain.LogBook, error) {
	var response struct {
		Data []domain.LogBook `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/logbooks", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetLogBook retrieves one council's logbook
func (c *Client) GetLogBook(ctx context.Context, councilID string) (*domain.LogBook, error) {
	path := fmt.Sprintf("/api/v1/logbooks/%s", url.PathEscape(councilID))

	var response struct {
		Data *domain.LogBook `json:"data"`
	}
	if err := c.get(ctx, path, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetFailing retrieves the failing councils of the latest pass
func (c *Client) GetFailing(ctx context.Context) ([]domain.FailingEntry, error) {
	var response struct {
		Data []domain.FailingEntry `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/failing", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// ListAggregations retrieves archived pass summaries. A zero limit uses the
// server default.
func (c *Client) ListAggregations(ctx context.Context, limit int) ([]domain.AggregationSummary, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Data []domain.AggregationSummary `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/aggregations", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

type errorBody struct {
	Error struct {
		Code    apperrors.ErrCode `json:"code"`
		Message string            `json:"message"`
	} `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewFetchError(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var e errorBody
		if json.Unmarshal(body, &e) == nil && e.Error.Code != "" {
			return &apperrors.AppError{Code: e.Error.Code, Message: e.Error.Message}
		}
		return apperrors.NewFetchError(path, fmt.Errorf("API error: %s - %s", resp.Status, string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
