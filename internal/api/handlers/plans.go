package handlers

import (
	"encoding/json"
	"gbfs2osm/internal/api/dto"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/ports"
	"gbfs2osm/internal/services"
	"io"
	"net/http"
	"strings"
)

// Cap on request bodies; plan requests are a handful of options.
const maxPlanRequestBytes = 64 << 10

type PlanHandler struct {
	Source   ports.StationSource
	Fetcher  ports.EntityFetcher
	Defaults services.ReconcileRequest
}

// Plan runs the reconciliation pipeline and returns the changeset it would
// write. Request fields override the server defaults for this call only.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.PlanRequest

	dec := json.NewDecoder(io.LimitReader(r.Body, maxPlanRequestBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil && err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	svcReq, err := h.request(req)
	if err != nil {
		writeServiceError(w, r, "plan", err)
		return
	}

	result, err := services.Reconcile(r.Context(), svcReq, h.Source, h.Fetcher)
	if err != nil {
		writeServiceError(w, r, "plan", err)
		return
	}

	bounds := ""
	if result.Changeset.Stats.Stations > 0 {
		bounds = result.Bounds.String()
	}
	writeJSON(w, r, http.StatusOK, dto.NewPlanResponse(result.Metadata.SystemID, bounds, result.Changeset))
}

// request applies the overrides in req to a copy of the defaults.
func (h *PlanHandler) request(req dto.PlanRequest) (services.ReconcileRequest, error) {
	svcReq := h.Defaults

	if req.Overwrite != nil {
		policy, err := domain.ParseOverwritePolicy(req.Overwrite)
		if err != nil {
			return services.ReconcileRequest{}, err
		}
		svcReq.Policy = policy
	}
	if req.MatchDistance != nil {
		svcReq.Match.ThresholdMeters = *req.MatchDistance
	}
	if req.RefMatchMaxDistance != nil {
		svcReq.Match.RefMaxDistanceMeters = *req.RefMatchMaxDistance
	}
	if req.PositionTolerance != nil {
		svcReq.PositionToleranceMeters = *req.PositionTolerance
	}
	if op := strings.TrimSpace(req.Operator); op != "" {
		svcReq.Metadata.Operator = op
	}
	if nw := strings.TrimSpace(req.Network); nw != "" {
		svcReq.Metadata.Network = nw
	}
	if req.Bounds != nil {
		b := domain.BoundingBox{
			MinLat: req.Bounds.MinLat,
			MinLon: req.Bounds.MinLon,
			MaxLat: req.Bounds.MaxLat,
			MaxLon: req.Bounds.MaxLon,
		}
		svcReq.Bounds = &b
	}

	return svcReq, svcReq.Validate()
}
