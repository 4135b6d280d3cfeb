package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"devto-news/internal/domain/entity"
	"devto-news/internal/resilience/circuitbreaker"
	"devto-news/internal/resilience/retry"
)

// DevtoFetcher retrieves article summaries from the DEV.to articles API.
type DevtoFetcher struct {
	baseURL        string
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewDevtoFetcher creates a DevtoFetcher talking to baseURL with the given
// HTTP client. Circuit breaker and retry are configured for feed fetching.
func NewDevtoFetcher(baseURL string, client *http.Client) *DevtoFetcher {
	return &DevtoFetcher{
		baseURL:        baseURL,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
	}
}

// Fetch retrieves up to perPage articles tagged with tag. Failures are
// always reported as a *FetchError so callers can map them to response
// statuses.
func (f *DevtoFetcher) Fetch(ctx context.Context, tag string, perPage int) ([]entity.Article, error) {
	var articles []entity.Article

	cfg := f.retryConfig
	cfg.RetryIf = func(err error) bool {
		return retry.IsRetryable(err) || retryableStatus(err)
	}

	retryErr := retry.WithBackoff(ctx, cfg, func() error {
		cbResult, err := f.circuitBreaker.Execute(func() (any, error) {
			return f.doFetch(ctx, tag, perPage)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("circuit", f.circuitBreaker.Name()),
					slog.String("url", f.baseURL))
			}
			return err
		}
		articles = cbResult.([]entity.Article)
		return nil
	})
	if retryErr != nil {
		var fetchErr *FetchError
		if errors.As(retryErr, &fetchErr) {
			return nil, fetchErr
		}
		return nil, &FetchError{URL: f.baseURL, Err: retryErr}
	}

	return articles, nil
}

// doFetch performs one request without retry or circuit breaker.
func (f *DevtoFetcher) doFetch(ctx context.Context, tag string, perPage int) ([]entity.Article, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, &FetchError{URL: f.baseURL, Err: err}
	}
	q := u.Query()
	q.Set("tag", tag)
	q.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: u.String(), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u.String(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	var payload []devtoArticle
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &FetchError{URL: u.String(), Err: fmt.Errorf("decode response: %w", err)}
	}

	articles := make([]entity.Article, 0, len(payload))
	for _, a := range payload {
		articles = append(articles, entity.Article{
			ID:          a.ID,
			Title:       a.Title,
			URL:         a.URL,
			Description: a.Description,
			PublishedAt: a.PublishedAt,
			Tags:        a.Tags,
			Author: entity.Author{
				Name:     a.User.Name,
				Username: a.User.Username,
			},
		})
	}
	return articles, nil
}

// devtoArticle is the subset of the DEV.to article payload the service
// re-exposes.
type devtoArticle struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	Tags        tagList   `json:"tags"`
	User        struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"user"`
}

// tagList accepts both shapes DEV.to uses for tags: a JSON array and a
// comma-separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var asSlice []string
	if err := json.Unmarshal(data, &asSlice); err == nil {
		*t = asSlice
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("tags is neither array nor string: %w", err)
	}
	if asString == "" {
		*t = nil
		return nil
	}

	parts := strings.Split(asString, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	*t = tags
	return nil
}
