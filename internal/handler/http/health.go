package http

import (
	"context"
	"net/http"
	"time"

	"devto-news/internal/handler/http/respond"
)

// pingTimeout bounds the datastore probe so a hung connection cannot stall
// the health endpoint.
const pingTimeout = 2 * time.Second

// Pinger probes datastore connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health. The service is considered healthy
// whenever it can serve requests; telemetry storage state is reported
// alongside but never fails the check, since persistence is best-effort.
type HealthHandler struct {
	Version string
	Store   Pinger // nil when running without a datastore
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Storage string `json:"storage"`
}

// Storage states reported by the health endpoint.
const (
	storageOK       = "ok"
	storageDegraded = "degraded"
	storageDisabled = "disabled"
)

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		respond.JSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	resp := healthResponse{Status: "ok", Version: h.Version, Storage: storageOK}
	switch {
	case h.Store == nil:
		resp.Storage = storageDisabled
	default:
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			resp.Storage = storageDegraded
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}

// LiveHandler answers liveness probes as soon as the process accepts
// connections.
func LiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
}
