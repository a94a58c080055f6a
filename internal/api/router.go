package api

import (
	"gbfs2osm/internal/api/handlers"
	"gbfs2osm/internal/ports"
	"gbfs2osm/internal/services"
	"net/http"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
// Every endpoint is read-only: plans are previews and nothing is written or uploaded.
func NewRouter(
	source ports.StationSource,
	fetcher ports.EntityFetcher,
	defaults services.ReconcileRequest,
	version string,
) http.Handler {
	mux := http.NewServeMux()

	stationHandler := &handlers.StationHandler{
		Source:    source,
		Normalize: defaults.Normalize,
	}
	planHandler := &handlers.PlanHandler{
		Source:   source,
		Fetcher:  fetcher,
		Defaults: defaults,
	}

	mux.HandleFunc("/health", handlers.Health(version))
	mux.HandleFunc("/stations", stationHandler.List)
	mux.HandleFunc("/plans", planHandler.Plan)

	return loggingMiddleware(mux)
}
