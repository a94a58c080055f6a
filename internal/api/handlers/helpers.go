package handlers

import (
	"encoding/json"
	"errors"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/logging"
	"net/http"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("encode failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps pipeline failures to HTTP statuses: bad options are
// the caller's fault, a broken feed or backend is an upstream one.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	var ice *domain.InvalidConfigurationError
	switch {
	case errors.As(err, &ice):
		status, msg = http.StatusBadRequest, ice.Error()
	case domain.IsMalformedFeed(err):
		status, msg = http.StatusBadGateway, err.Error()
	case domain.IsBackendUnavailable(err):
		status, msg = http.StatusServiceUnavailable, err.Error()
	}

	logging.FromContext(r.Context()).Error().Err(err).Int("status", status).Msg(op + " failed")
	writeError(w, r, status, msg)
}
