package dto

import (
	"gbfs2osm/internal/domain"
	"time"
)

type SystemResponse struct {
	SystemID    string `json:"system_id"`
	Name        string `json:"name,omitempty"`
	Operator    string `json:"operator,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	URL         string `json:"url,omitempty"`
	Language    string `json:"language,omitempty"`
}

type StationResponse struct {
	StationID string  `json:"station_id"`
	LogicalID string  `json:"logical_id"`
	Name      string  `json:"name"`
	ShortName string  `json:"short_name,omitempty"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Capacity  *int    `json:"capacity"`
}

type ListStationsResponse struct {
	System      SystemResponse    `json:"system"`
	LastUpdated *time.Time        `json:"last_updated,omitempty"`
	Stations    []StationResponse `json:"stations"`
}

func NewSystemResponse(s domain.SystemInfo) SystemResponse {
	return SystemResponse{
		SystemID:    s.SystemID,
		Name:        s.Name,
		Operator:    s.Operator,
		PhoneNumber: s.PhoneNumber,
		URL:         s.URL,
		Language:    s.Language,
	}
}

func NewStationResponse(s domain.Station) StationResponse {
	res := StationResponse{
		StationID: s.ID,
		LogicalID: s.LogicalID,
		Name:      s.Name,
		ShortName: s.ShortName,
		Lat:       s.Position.Lat,
		Lon:       s.Position.Lon,
	}
	if s.CapacityKnown {
		c := s.Capacity
		res.Capacity = &c
	}
	return res
}
