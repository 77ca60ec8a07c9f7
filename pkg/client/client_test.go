package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/v1/logbooks", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"council_id":"X","missing":false,"log_runs":[{"status_code":1,"start":"2024-01-03T00:00:00","errors":"boom","log_text":"","end":null,"duration":90.5}]}]}`))
	})
	mux.HandleFunc("/api/v1/logbooks/X", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"council_id":"X","missing":true,"log_runs":[]}}`))
	})
	mux.HandleFunc("/api/v1/failing", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"council_id":"X","missing":false,"latest_run":{"status_code":429,"start":null,"errors":"","log_text":"","end":null,"duration":0}}]}`))
	})
	mux.HandleFunc("/api/v1/aggregations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[{"id":"a","generated_at":"2024-05-01T12:00:00Z","source":"s3","window":"count","logbooks":4,"failing":1,"failed_councils":0}]}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"logbook NOPE not found"}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewClient(server.URL)
}

func TestClient(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.HealthCheck(ctx))

	logbooks, err := c.GetLogBooks(ctx)
	require.NoError(t, err)
	require.Len(t, logbooks, 1)
	assert.Equal(t, 90.5, logbooks[0].LogRuns[0].Duration)
	assert.Equal(t, "2024-01-03T00:00:00", logbooks[0].LogRuns[0].Start.String())

	lb, err := c.GetLogBook(ctx, "X")
	require.NoError(t, err)
	assert.True(t, lb.Missing)

	failing, err := c.GetFailing(ctx)
	require.NoError(t, err)
	require.Len(t, failing, 1)
	assert.Nil(t, failing[0].LatestRun.Start)

	summaries, err := c.ListAggregations(ctx, 3)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 4, summaries[0].LogBooks)
}

func TestClient_Errors(t *testing.T) {
	c := newTestClient(t)

	_, err := c.GetLogBook(context.Background(), "NOPE")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "logbook NOPE not found")

	unreachable := NewClient("http://127.0.0.1:1")
	err = unreachable.HealthCheck(context.Background())
	assert.True(t, apperrors.IsFetchError(err))
}
