package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

func TestExpiryChecker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/organisations/ENDED/":
			_, _ = w.Write([]byte(`{"end_date":"2024-03-31"}`))
		case "/organisations/ENDS-TODAY/":
			_, _ = w.Write([]byte(`{"end_date":"2024-04-01"}`))
		case "/organisations/CURRENT/":
			_, _ = w.Write([]byte(`{"end_date":null}`))
		case "/organisations/BROKEN/":
			w.WriteHeader(http.StatusInternalServerError)
		case "/organisations/ODD/":
			_, _ = w.Write([]byte(`{"end_date":"31/03/2024"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	checker := NewExpiryChecker(server.URL+"/", 1000, nil).(*directoryChecker)
	checker.now = func() time.Time { return time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	for id, want := range map[string]bool{
		"ENDED":      true,
		"ENDS-TODAY": false,
		"CURRENT":    false,
		"UNKNOWN":    false,
	} {
		got, err := checker.IsExpired(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got, id)
	}

	_, err := checker.IsExpired(ctx, "BROKEN")
	assert.True(t, apperrors.IsFetchError(err))

	_, err = checker.IsExpired(ctx, "ODD")
	assert.True(t, apperrors.IsParseError(err))
}

func TestNewExpiryChecker_Disabled(t *testing.T) {
	checker := NewExpiryChecker("", 0, nil)
	assert.IsType(t, NeverExpired{}, checker)

	expired, err := checker.IsExpired(context.Background(), "ANY")
	require.NoError(t, err)
	assert.False(t, expired)
}
