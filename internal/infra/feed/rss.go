package feed

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"devto-news/internal/domain/entity"
	"devto-news/internal/resilience/circuitbreaker"
	"devto-news/internal/resilience/retry"
)

// RSSFetcher serves articles from an RSS/Atom feed using the gofeed parser.
// It is the fallback provider for deployments that cannot reach the DEV.to
// API directly.
type RSSFetcher struct {
	feedURL        string
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewRSSFetcher creates an RSSFetcher reading from feedURL.
func NewRSSFetcher(feedURL string, client *http.Client) *RSSFetcher {
	return &RSSFetcher{
		feedURL:        feedURL,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
	}
}

// Fetch parses the feed and returns up to perPage items whose categories
// match tag. Items without categories are kept, since many feeds omit them.
func (f *RSSFetcher) Fetch(ctx context.Context, tag string, perPage int) ([]entity.Article, error) {
	var articles []entity.Article

	retryErr := retry.WithBackoff(ctx, f.retryConfig, func() error {
		cbResult, err := f.circuitBreaker.Execute(func() (any, error) {
			return f.doFetch(ctx, tag, perPage)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("circuit", f.circuitBreaker.Name()),
					slog.String("url", f.feedURL))
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
		return nil, &FetchError{URL: f.feedURL, Err: retryErr}
	}

	return articles, nil
}

func (f *RSSFetcher) doFetch(ctx context.Context, tag string, perPage int) ([]entity.Article, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "devto-news-service"
	fp.Client = f.client

	parsed, err := fp.ParseURLWithContext(f.feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &FetchError{URL: f.feedURL, StatusCode: httpErr.StatusCode}
		}
		return nil, &FetchError{URL: f.feedURL, Err: err}
	}

	articles := make([]entity.Article, 0, perPage)
	for _, it := range parsed.Items {
		if len(articles) == perPage {
			break
		}
		if !matchesTag(it.Categories, tag) {
			continue
		}

		publishedAt := time.Now().UTC()
		if it.PublishedParsed != nil {
			publishedAt = it.PublishedParsed.UTC()
		}

		article := entity.Article{
			ID:          itemID(it),
			Title:       it.Title,
			URL:         it.Link,
			Description: it.Description,
			PublishedAt: publishedAt,
			Tags:        it.Categories,
		}
		if len(it.Authors) > 0 {
			article.Author = entity.Author{Name: it.Authors[0].Name}
		}
		articles = append(articles, article)
	}
	return articles, nil
}

// matchesTag reports whether the item's categories include tag. Feeds
// without categories cannot be filtered, so their items always match.
func matchesTag(categories []string, tag string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c), tag) {
			return true
		}
	}
	return false
}

// itemID derives a stable numeric ID from the item's GUID or link, since
// RSS items carry no numeric identifier.
func itemID(it *gofeed.Item) int64 {
	key := it.GUID
	if key == "" {
		key = it.Link
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	// Mask the sign bit so IDs serialize as positive numbers.
	return int64(h.Sum64() & (1<<63 - 1))
}
