// Package httputil holds the JSON response helpers used by the read-only
// debug endpoints.
package httputil

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/monitoring"
)

// WriteJSON writes data as an indented JSON document with the given status.
// Encoding failures are logged to logger, which may be nil.
func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		monitoring.OrNop(logger).Warn("encode json response", zap.Error(err))
	}
}

// WriteJSONError writes {"error": msg} with the given status.
func WriteJSONError(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	WriteJSON(w, logger, status, map[string]string{"error": msg})
}

// MethodNotAllowed rejects anything but the listed methods. It reports
// whether the request may proceed.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request, logger *zap.Logger, allowed ...string) bool {
	for _, m := range allowed {
		if r.Method == m {
			return true
		}
	}
	WriteJSONError(w, logger, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
