// Package news provides the news retrieval use case. It drives the upstream
// fetch and emits the telemetry surrounding it: a span per fetch and the
// request/article counters.
package news

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"devto-news/internal/domain/entity"
	"devto-news/internal/infra/feed"
	"devto-news/internal/observability/metrics"
	"devto-news/internal/observability/tracing"
)

// Service retrieves recent articles from the configured feed provider.
type Service struct {
	fetcher     feed.Fetcher
	instruments *metrics.Instruments
	sourceURL   string
}

// NewService creates a Service reading through fetcher. sourceURL is the
// upstream endpoint, recorded on fetch spans.
func NewService(fetcher feed.Fetcher, instruments *metrics.Instruments, sourceURL string) *Service {
	return &Service{
		fetcher:     fetcher,
		instruments: instruments,
		sourceURL:   sourceURL,
	}
}

// Latest fetches up to perPage recent articles for tag. The request counter
// is incremented before the fetch so failed attempts are counted too. Errors
// from the provider are returned unwrapped, preserving the *feed.FetchError
// the handler maps to a response status.
func (s *Service) Latest(ctx context.Context, tag string, perPage int) ([]entity.Article, error) {
	s.instruments.RecordRequest(ctx, tag)

	ctx, span := tracing.GetTracer().Start(ctx, "devto.fetch_articles")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", http.MethodGet),
		attribute.String("http.url", s.sourceURL),
		attribute.String("devto.tag", tag),
		attribute.Int("devto.per_page", perPage),
	)

	articles, err := s.fetcher.Fetch(ctx, tag, perPage)
	if err != nil {
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.status_code", fetchErr.StatusCode))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("http.status_code", http.StatusOK),
		attribute.Int("devto.article_count", len(articles)),
	)
	span.SetStatus(codes.Ok, "")

	s.instruments.RecordArticles(ctx, tag, len(articles))
	return articles, nil
}
