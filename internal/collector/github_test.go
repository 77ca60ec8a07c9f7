package collector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

const abcLogbook = `{"runs":[{"status_code":1,"log":"trace","start":"2024-01-03T00:00:00","end":"2024-01-03T00:01:30","duration":"00:01:30.000000","error":"boom"}]}`

func newTestGitHubSource(t *testing.T, handler http.Handler) Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	src, err := NewGitHubSource(GitHubConfig{
		Owner:   "lgsf",
		Repo:    "logbooks",
		Path:    "logbooks",
		Ref:     "main",
		BaseURL: server.URL,
	}, nil)
	require.NoError(t, err)
	return src
}

func fileContent(name, body string) map[string]interface{} {
	return map[string]interface{}{
		"type":     "file",
		"name":     name,
		"path":     "logbooks/" + name,
		"encoding": "base64",
		"size":     len(body),
		"content":  base64.StdEncoding.EncodeToString([]byte(body)),
	}
}

func TestGitHubSource_FetchDocuments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/lgsf/logbooks/contents/logbooks/ABC.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		_ = json.NewEncoder(w).Encode(fileContent("ABC.json", abcLogbook))
	})
	mux.HandleFunc("/repos/lgsf/logbooks/contents/logbooks/BAD.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(fileContent("BAD.json", `{"nothing":true}`))
	})
	mux.HandleFunc("/repos/lgsf/logbooks/contents/logbooks/ERR.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})
	src := newTestGitHubSource(t, mux)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		docs, err := src.FetchDocuments(ctx, "ABC")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		records := docs[0].RecordsFor("ABC")
		require.Len(t, records, 1)
		assert.Equal(t, "boom", records[0].(domain.CouncilRecord).Error)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := src.FetchDocuments(ctx, "NOPE")
		assert.True(t, apperrors.IsNotFound(err))
		assert.False(t, apperrors.IsFetchError(err))
	})

	t.Run("server error is a fetch error", func(t *testing.T) {
		_, err := src.FetchDocuments(ctx, "ERR")
		assert.True(t, apperrors.IsFetchError(err))
		assert.False(t, apperrors.IsNotFound(err))
	})

	t.Run("unrecognised document", func(t *testing.T) {
		_, err := src.FetchDocuments(ctx, "BAD")
		assert.True(t, apperrors.IsParseError(err))
	})

	t.Run("no detail documents", func(t *testing.T) {
		detail, err := src.ResolveDetail(ctx, "anything")
		require.NoError(t, err)
		assert.Nil(t, detail)
	})
}

func TestGitHubSource_ListCouncils(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/lgsf/logbooks/contents/logbooks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"type": "file", "name": "ZZZ.json"},
			{"type": "dir", "name": "archive"},
			{"type": "file", "name": "README.md"},
			{"type": "file", "name": "ABC.json"},
		})
	})
	src := newTestGitHubSource(t, mux)

	ids, err := src.ListCouncils(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "ZZZ"}, ids)
}

func TestGitHubSource_RateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/lgsf/logbooks/contents/logbooks/ABC.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
	})
	src := newTestGitHubSource(t, mux)

	_, err := src.FetchDocuments(context.Background(), "ABC")
	assert.True(t, apperrors.IsRateLimited(err))
	assert.True(t, apperrors.IsFetchError(err))
	assert.False(t, apperrors.IsNotFound(err))
}
