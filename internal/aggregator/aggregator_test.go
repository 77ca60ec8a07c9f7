package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
	"github.com/lgsf-dashboard/logbooks/internal/logbook"
)

type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) FetchDocuments(_ context.Context, id string) ([]domain.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()

	if err := f.errs[id]; err != nil {
		return nil, err
	}
	raw, ok := f.docs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(id)
	}
	doc, err := domain.DecodeDocument([]byte(raw))
	if err != nil {
		return nil, err
	}
	return []domain.Document{doc}, nil
}

type fakeExpiry struct {
	expired map[string]bool
	errs    map[string]error
}

func (f fakeExpiry) IsExpired(_ context.Context, id string) (bool, error) {
	return f.expired[id], f.errs[id]
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{
		docs: map[string]string{
			"X": `{"runs":[
				{"status_code":0,"log":"","start":"2024-01-02T00:00:00","end":"2024-01-02T00:00:10","duration":"00:00:10.000000","error":""},
				{"status_code":1,"log":"trace","start":"2024-01-03T00:00:00","end":"2024-01-03T00:01:30","duration":"00:01:30.500000","error":"boom"}
			]}`,
			"OK":    `{"runs":[{"status_code":0,"start":"2024-01-03T00:00:00","duration":"00:00:05"}]}`,
			"EMPTY": `{"runs":[]}`,
			"BAD":   `{"runs":[{"status_code":0,"start":"2024-01-03T00:00:00"},{"status_code":1,"start":"yesterday"}]}`,
			"OLD":   `{"runs":[{"status_code":1,"start":"2024-01-03T00:00:00"}]}`,
		},
		errs: map[string]error{
			"DOWN": apperrors.NewFetchError("DOWN", errors.New("connection reset")),
		},
	}
}

func newDriver(f *fakeFetcher, exp fakeExpiry, opts ...logbook.Option) *Driver {
	b := logbook.NewBuilder(logbook.CountWindow{Size: logbook.DefaultSize}, nil, opts...)
	return NewDriver(f, exp, b, WithConcurrency(3))
}

func TestDriver_Run(t *testing.T) {
	f := newFetcher()
	exp := fakeExpiry{
		expired: map[string]bool{"OLD": true},
		errs:    map[string]error{"LOST": apperrors.NewFetchError("directory", errors.New("timeout"))},
	}
	ids := []string{"BAD", "DOWN", "EMPTY", "LOST", "OK", "OLD", "X", "Y"}

	res, err := newDriver(f, exp).Run(context.Background(), ids)
	require.NoError(t, err)

	var got []string
	for _, lb := range res.LogBooks {
		got = append(got, lb.CouncilID)
	}
	assert.Equal(t, []string{"BAD", "OK", "X", "Y"}, got)

	y := res.LogBooks[3]
	assert.True(t, y.Missing)
	assert.Empty(t, y.LogRuns)

	require.Len(t, res.Failing, 1)
	assert.Equal(t, "X", res.Failing[0].CouncilID)
	assert.Equal(t, domain.StatusFailed, res.Failing[0].LatestRun.StatusCode)

	assert.Equal(t, []string{"DOWN", "LOST"}, res.FailedCouncils())
	assert.True(t, apperrors.IsFetchError(res.Failures[0].Err))
	assert.Equal(t, []string{"OLD"}, res.Expired)

	require.Len(t, res.Skipped["BAD"], 1)
	assert.Equal(t, 1, res.Skipped["BAD"][0].Index)

	// expired and unreachable councils are never fetched
	assert.NotContains(t, f.calls, "OLD")
	assert.NotContains(t, f.calls, "LOST")
}

func TestDriver_ParseFailureFailsCouncilUnderFailPolicy(t *testing.T) {
	res, err := newDriver(newFetcher(), fakeExpiry{}, logbook.WithParsePolicy(logbook.FailCouncil)).
		Run(context.Background(), []string{"BAD", "X"})
	require.NoError(t, err)

	assert.Equal(t, []string{"BAD"}, res.FailedCouncils())
	assert.True(t, apperrors.IsParseError(res.Failures[0].Err))
	require.Len(t, res.LogBooks, 1)
	assert.Equal(t, "X", res.LogBooks[0].CouncilID)
}

func TestDriver_Idempotent(t *testing.T) {
	ids := []string{"BAD", "DOWN", "EMPTY", "OK", "X", "Y"}
	marshal := func() ([]byte, []byte) {
		res, err := newDriver(newFetcher(), fakeExpiry{}).Run(context.Background(), ids)
		require.NoError(t, err)
		lb, err := json.Marshal(res.LogBooks)
		require.NoError(t, err)
		fl, err := json.Marshal(res.Failing)
		require.NoError(t, err)
		return lb, fl
	}

	lb1, fl1 := marshal()
	lb2, fl2 := marshal()
	assert.Equal(t, string(lb1), string(lb2))
	assert.Equal(t, string(fl1), string(fl2))
}

func TestDriver_NoCouncils(t *testing.T) {
	res, err := newDriver(newFetcher(), fakeExpiry{}).Run(context.Background(), nil)
	require.NoError(t, err)

	lb, err := json.Marshal(res.LogBooks)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(lb))
	fl, err := json.Marshal(res.Failing)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(fl))
}

func TestDriver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDriver(newFetcher(), fakeExpiry{}).Run(ctx, []string{"X"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDriver_Aggregation(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := logbook.NewBuilder(logbook.CountWindow{Size: logbook.DefaultSize}, nil)
	d := NewDriver(newFetcher(), nil, b, WithClock(func() time.Time { return now }))

	res, err := d.Run(context.Background(), []string{"DOWN", "X"})
	require.NoError(t, err)

	agg := d.Aggregation(res, "github")
	assert.NotEmpty(t, agg.ID)
	assert.Equal(t, now, agg.GeneratedAt)
	assert.Equal(t, "github", agg.Source)
	assert.Equal(t, "count", agg.Window)
	assert.Equal(t, []string{"DOWN"}, agg.FailedCouncils)
	assert.Len(t, agg.LogBooks, 1)
	assert.Len(t, agg.Failing, 1)
}
