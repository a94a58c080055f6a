package overpass

import (
	"encoding/json"
	"errors"
	"fmt"
	"gbfs2osm/internal/domain"
	"strings"
)

type response struct {
	Remark   string    `json:"remark"`
	Elements []element `json:"elements"`
}

type element struct {
	Type    string            `json:"type"`
	ID      int64             `json:"id"`
	Lat     *float64          `json:"lat"`
	Lon     *float64          `json:"lon"`
	Version int               `json:"version"`
	Tags    map[string]string `json:"tags"`
}

// decodeEntities converts an Overpass JSON response. A response the server
// cut short (runtime error or timeout remark) is rejected, since its element
// list may be incomplete.
func decodeEntities(body []byte) ([]domain.ExistingEntity, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, domain.NewBackendUnavailableError(backendName, 0, "decode response", err)
	}
	if r.Elements == nil {
		return nil, domain.NewBackendUnavailableError(backendName, 0, "response has no elements list", nil)
	}
	if remark := strings.TrimSpace(r.Remark); strings.Contains(strings.ToLower(remark), "error") {
		return nil, domain.NewBackendUnavailableError(backendName, 0, remark, errors.New("query did not complete"))
	}

	out := make([]domain.ExistingEntity, 0, len(r.Elements))
	for _, el := range r.Elements {
		if el.Type != "node" {
			continue
		}
		if el.Lat == nil || el.Lon == nil {
			return nil, domain.NewBackendUnavailableError(backendName, 0,
				fmt.Sprintf("node %d has no position", el.ID), nil)
		}
		if el.Version <= 0 {
			return nil, domain.NewBackendUnavailableError(backendName, 0,
				fmt.Sprintf("node %d has no version; query must use out meta", el.ID), nil)
		}

		tags := make(domain.Tags, len(el.Tags))
		for k, v := range el.Tags {
			tags[k] = v
		}
		out = append(out, domain.ExistingEntity{
			ID:       el.ID,
			Version:  el.Version,
			Position: domain.Coordinates{Lat: *el.Lat, Lon: *el.Lon},
			Tags:     tags,
		})
	}

	return out, nil
}
