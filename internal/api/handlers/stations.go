package handlers

import (
	"gbfs2osm/internal/api/dto"
	"gbfs2osm/internal/ports"
	"gbfs2osm/internal/services"
	"net/http"
)

// StationHandler exposes the normalized station feed.
type StationHandler struct {
	Source    ports.StationSource
	Normalize services.NormalizeOptions
}

func (h *StationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	feed, err := services.LoadFeed(r.Context(), h.Source, h.Normalize)
	if err != nil {
		writeServiceError(w, r, "list stations", err)
		return
	}

	res := dto.ListStationsResponse{
		System:   dto.NewSystemResponse(feed.System),
		Stations: make([]dto.StationResponse, 0, len(feed.Stations)),
	}
	if !feed.LastUpdated.IsZero() {
		t := feed.LastUpdated
		res.LastUpdated = &t
	}
	for _, s := range feed.Stations {
		res.Stations = append(res.Stations, dto.NewStationResponse(s))
	}

	writeJSON(w, r, http.StatusOK, res)
}
