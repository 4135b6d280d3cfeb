// Package feed provides clients for the upstream news sources. Both the
// DEV.to API client and the RSS fallback wrap their HTTP calls in retry and
// circuit breaker logic and map results into the shared article shape.
package feed

import (
	"context"

	"devto-news/internal/domain/entity"
)

// Fetcher retrieves recent articles for a tag. Implementations cap the
// result at perPage entries.
type Fetcher interface {
	Fetch(ctx context.Context, tag string, perPage int) ([]entity.Article, error)
}
