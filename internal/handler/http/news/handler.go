// Package news exposes the news retrieval endpoint.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"devto-news/internal/domain/entity"
	"devto-news/internal/handler/http/respond"
	"devto-news/internal/infra/feed"
	"devto-news/pkg/requestid"
)

// Query parameter defaults and bounds, matching the upstream API's limits.
const (
	defaultTag     = "technology"
	defaultPerPage = 5
	minPerPage     = 1
	maxPerPage     = 30
)

// Service retrieves recent articles for a tag.
type Service interface {
	Latest(ctx context.Context, tag string, perPage int) ([]entity.Article, error)
}

// Handler serves GET /news.
type Handler struct {
	Service Service
	Logger  *slog.Logger

	// Source names the upstream in response bodies, e.g. "DEV.to".
	Source string
}

// response is the news endpoint body.
type response struct {
	Source   string           `json:"source"`
	Tag      string           `json:"tag"`
	Count    int              `json:"count"`
	Articles []entity.Article `json:"articles"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		respond.JSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	tag := r.URL.Query().Get("tag")
	if tag == "" {
		tag = defaultTag
	}

	perPage, err := parsePerPage(r.URL.Query().Get("per_page"))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	articles, err := h.Service.Latest(r.Context(), tag, perPage)
	if err != nil {
		h.respondFetchFailure(w, r, tag, err)
		return
	}
	if articles == nil {
		articles = []entity.Article{}
	}

	respond.JSON(w, http.StatusOK, response{
		Source:   h.Source,
		Tag:      tag,
		Count:    len(articles),
		Articles: articles,
	})
}

// respondFetchFailure maps an upstream failure to a response status: the
// upstream's own status when it answered with an error, 502 when it could
// not be reached at all.
func (h *Handler) respondFetchFailure(w http.ResponseWriter, r *http.Request, tag string, err error) {
	h.Logger.Error("news fetch failed",
		slog.String("request_id", requestid.FromContext(r.Context())),
		slog.String("tag", tag),
		slog.Any("error", err))

	var fetchErr *feed.FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		respond.SafeError(w, fetchErr.StatusCode,
			fmt.Errorf("upstream error from news API"))
		return
	}
	respond.SafeError(w, http.StatusBadGateway,
		fmt.Errorf("unable to reach news API"))
}

func parsePerPage(raw string) (int, error) {
	if raw == "" {
		return defaultPerPage, nil
	}
	perPage, err := strconv.Atoi(raw)
	if err != nil || perPage < minPerPage || perPage > maxPerPage {
		return 0, fmt.Errorf("per_page must be between %d and %d", minPerPage, maxPerPage)
	}
	return perPage, nil
}
