package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, attempts int) ResultsRepository {
	t.Helper()
	repo, err := NewResultsRepository(FetchOptions{
		Timeout:      2 * time.Second,
		MaxAttempts:  attempts,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
		UserAgent:    "gradcafe-test",
	})
	require.NoError(t, err)
	return repo
}

func TestFetchRetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gradcafe-test", r.Header.Get("User-Agent"))
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<table><tr><td>ok</td></tr></table>")
	}))
	defer srv.Close()

	body, err := newTestFetcher(t, 3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)

	assert.Contains(t, string(data), "<td>ok</td>")
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, 2).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, 5).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, 1).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrNotHTML)
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<p>Caf\xe9</p>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(t, 1).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "<p>Café</p>", string(data))
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, isRetryableStatus(code), code)
	}
	for _, code := range []int{200, 301, 403, 404, 501} {
		assert.False(t, isRetryableStatus(code), code)
	}
}
