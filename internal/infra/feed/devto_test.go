package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devto-news/internal/infra/feed"
)

const articlesPayload = `[
	{
		"id": 101,
		"title": "Understanding Goroutines",
		"url": "https://dev.to/alice/understanding-goroutines",
		"description": "A practical tour of the scheduler.",
		"published_at": "2026-08-20T09:30:00Z",
		"tags": ["go", "concurrency"],
		"user": {"name": "Alice", "username": "alice"}
	},
	{
		"id": 102,
		"title": "Indexes in MongoDB",
		"url": "https://dev.to/bob/indexes-in-mongodb",
		"description": "When a collection scan bites.",
		"published_at": "2026-08-21T14:00:00Z",
		"tags": "mongodb, databases",
		"user": {"name": "Bob", "username": "bob"}
	}
]`

func TestDevtoFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "technology", r.URL.Query().Get("tag"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(articlesPayload))
	}))
	defer srv.Close()

	fetcher := feed.NewDevtoFetcher(srv.URL, srv.Client())
	articles, err := fetcher.Fetch(context.Background(), "technology", 5)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, int64(101), articles[0].ID)
	assert.Equal(t, "Understanding Goroutines", articles[0].Title)
	assert.Equal(t, []string{"go", "concurrency"}, articles[0].Tags)
	assert.Equal(t, "alice", articles[0].Author.Username)
	assert.Equal(t, time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC), articles[0].PublishedAt)

	// Comma-separated tags are normalized to a list.
	assert.Equal(t, []string{"mongodb", "databases"}, articles[1].Tags)
}

func TestDevtoFetcher_UpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := feed.NewDevtoFetcher(srv.URL, srv.Client())
	_, err := fetcher.Fetch(context.Background(), "technology", 5)

	var fetchErr *feed.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestDevtoFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	fetcher := feed.NewDevtoFetcher(srv.URL, srv.Client())
	articles, err := fetcher.Fetch(context.Background(), "technology", 5)
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDevtoFetcher_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	fetcher := feed.NewDevtoFetcher(srv.URL, srv.Client())
	_, err := fetcher.Fetch(context.Background(), "technology", 5)

	var fetchErr *feed.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusBadRequest, fetchErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDevtoFetcher_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not": "an array"`))
	}))
	defer srv.Close()

	fetcher := feed.NewDevtoFetcher(srv.URL, srv.Client())
	_, err := fetcher.Fetch(context.Background(), "technology", 5)

	var fetchErr *feed.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
}

func TestDevtoFetcher_UnreachableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	fetcher := feed.NewDevtoFetcher(srv.URL, &http.Client{Timeout: time.Second})
	_, err := fetcher.Fetch(context.Background(), "technology", 5)

	var fetchErr *feed.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
}

func TestTagListDecoding(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"array", `["go", "webdev"]`, []string{"go", "webdev"}},
		{"string", `"go, webdev"`, []string{"go", "webdev"}},
		{"empty string", `""`, nil},
		{"null", `null`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `[{"id": 1, "tags": ` + tt.body + `}]`
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			fetcher := feed.NewDevtoFetcher(srv.URL, srv.Client())
			articles, err := fetcher.Fetch(context.Background(), "technology", 5)
			require.NoError(t, err)
			require.Len(t, articles, 1)
			assert.Equal(t, tt.want, articles[0].Tags)
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &feed.FetchError{URL: "https://dev.to/api/articles", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "unreachable")

	statusErr := &feed.FetchError{URL: "https://dev.to/api/articles", StatusCode: 502}
	assert.Contains(t, statusErr.Error(), "502")
}
