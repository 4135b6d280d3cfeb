// Package respond writes JSON responses. Error responses are sanitized so
// internal details, including datastore addresses and credentials, never
// reach clients.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Error writes a JSON error body with the given status code.
func Error(w http.ResponseWriter, code int, err error) {
	JSON(w, code, map[string]string{"error": err.Error()})
}

// validationFragments mark messages that originate from input validation and
// are fine to echo back to the client on 4xx responses.
var validationFragments = []string{
	"required",
	"invalid",
	"not found",
	"must be",
	"cannot be",
	"rate limit",
}

// gatewayFragments mark handler-authored messages about a degraded upstream.
// These carry no internal detail and stay safe on any status code.
var gatewayFragments = []string{
	"upstream",
	"unable to reach",
}

func containsAny(msg string, fragments []string) bool {
	for _, fragment := range fragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// SafeError returns validation-style and upstream-degradation messages as-is
// and replaces everything else with a generic message, logging the sanitized
// original. Validation messages are trusted only below 500; a 5xx message
// passes through solely when a handler authored it for a failed upstream.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	msg := err.Error()
	lowerMsg := strings.ToLower(msg)
	isSafe := containsAny(lowerMsg, gatewayFragments)
	if !isSafe && code < 500 {
		isSafe = containsAny(lowerMsg, validationFragments)
	}

	if isSafe {
		JSON(w, code, map[string]string{"error": msg})
		return
	}

	slog.Default().Error("internal server error",
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.String("error", SanitizeError(err)))
	JSON(w, code, map[string]string{"error": "internal server error"})
}
