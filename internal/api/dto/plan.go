package dto

import "gbfs2osm/internal/domain"

// PlanRequest overrides the server defaults for one preview. Omitted
// fields keep the defaults.
type PlanRequest struct {
	Overwrite           []string     `json:"overwrite"`
	MatchDistance       *float64     `json:"match_distance"`
	PositionTolerance   *float64     `json:"position_tolerance"`
	RefMatchMaxDistance *float64     `json:"ref_match_max_distance"`
	Operator            string       `json:"operator"`
	Network             string       `json:"network"`
	Bounds              *BoundsInput `json:"bounds"`
}

type BoundsInput struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

type TagChangeResponse struct {
	Key string `json:"key"`
	Old string `json:"old,omitempty"`
	New string `json:"new"`
}

type OperationResponse struct {
	Action    string              `json:"action"`
	StationID string              `json:"station_id"`
	EntityID  int64               `json:"entity_id"`
	Version   int                 `json:"version,omitempty"`
	Lat       float64             `json:"lat"`
	Lon       float64             `json:"lon"`
	Moved     bool                `json:"moved,omitempty"`
	Tags      map[string]string   `json:"tags"`
	Changes   []TagChangeResponse `json:"changes"`
}

type StatsResponse struct {
	Stations          int `json:"stations"`
	Created           int `json:"created"`
	Modified          int `json:"modified"`
	Unchanged         int `json:"unchanged"`
	MatchedByRef      int `json:"matched_by_ref"`
	UnmatchedEntities int `json:"unmatched_entities"`
}

type PlanResponse struct {
	SystemID          string              `json:"system_id"`
	Bounds            string              `json:"bounds,omitempty"`
	Stats             StatsResponse       `json:"stats"`
	Operations        []OperationResponse `json:"operations"`
	UnmatchedEntities []int64             `json:"unmatched_entities"`
}

func NewPlanResponse(systemID string, bounds string, cs *domain.Changeset) PlanResponse {
	res := PlanResponse{
		SystemID: systemID,
		Bounds:   bounds,
		Stats: StatsResponse{
			Stations:          cs.Stats.Stations,
			Created:           cs.Stats.Created,
			Modified:          cs.Stats.Modified,
			Unchanged:         cs.Stats.Unchanged,
			MatchedByRef:      cs.Stats.MatchedByRef,
			UnmatchedEntities: cs.Stats.UnmatchedEntities,
		},
		Operations:        make([]OperationResponse, 0, len(cs.Operations)),
		UnmatchedEntities: make([]int64, 0, len(cs.UnmatchedEntities)),
	}

	for _, op := range cs.Operations {
		changes := make([]TagChangeResponse, 0, len(op.Changes))
		for _, c := range op.Changes {
			changes = append(changes, TagChangeResponse{Key: c.Key, Old: c.Old, New: c.New})
		}
		res.Operations = append(res.Operations, OperationResponse{
			Action:    op.Kind.String(),
			StationID: op.StationID,
			EntityID:  op.EntityID,
			Version:   op.Version,
			Lat:       op.Position.Lat,
			Lon:       op.Position.Lon,
			Moved:     op.Moved,
			Tags:      op.Tags,
			Changes:   changes,
		})
	}
	for _, e := range cs.UnmatchedEntities {
		res.UnmatchedEntities = append(res.UnmatchedEntities, e.ID)
	}

	return res
}
