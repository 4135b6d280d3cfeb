package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devto-news/pkg/requestid"
)

func TestMiddleware_GeneratesID(t *testing.T) {
	var captured string
	handler := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = requestid.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/news", nil))

	require.NotEmpty(t, captured)
	_, err := uuid.Parse(captured)
	assert.NoError(t, err)
	assert.Equal(t, captured, rec.Header().Get(requestid.RequestIDHeader))
}

func TestMiddleware_PropagatesExistingID(t *testing.T) {
	var captured string
	handler := requestid.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = requestid.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/news", nil)
	req.Header.Set(requestid.RequestIDHeader, "client-chosen-id")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "client-chosen-id", captured)
	assert.Equal(t, "client-chosen-id", rec.Header().Get(requestid.RequestIDHeader))
}

func TestFromContext_Missing(t *testing.T) {
	assert.Empty(t, requestid.FromContext(context.Background()))
}
