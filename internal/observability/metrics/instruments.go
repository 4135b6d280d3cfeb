package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names persisted to the metrics collection.
const (
	RequestsCounterName = "devto.news.requests"
	ArticlesCounterName = "devto.news.articles_returned"
)

// Instruments holds the application counters. They are registered once at
// process startup and never recreated; recreating them would reset the
// cumulative values the storage monotonicity guarantee depends on.
type Instruments struct {
	requests metric.Int64Counter
	articles metric.Int64Counter
}

// NewInstruments registers the news counters on the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	requests, err := meter.Int64Counter(
		RequestsCounterName,
		metric.WithDescription("Number of calls to the /news endpoint"),
	)
	if err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}

	articles, err := meter.Int64Counter(
		ArticlesCounterName,
		metric.WithDescription("Number of articles returned to clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("create articles counter: %w", err)
	}

	return &Instruments{requests: requests, articles: articles}, nil
}

// RecordRequest counts one call to the news endpoint. Called before the feed
// fetch so failed attempts are counted too.
func (i *Instruments) RecordRequest(ctx context.Context, tag string) {
	i.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("tag", tag)))
}

// RecordArticles counts articles returned by a successful fetch.
func (i *Instruments) RecordArticles(ctx context.Context, tag string, count int) {
	i.articles.Add(ctx, int64(count), metric.WithAttributes(attribute.String("tag", tag)))
}
