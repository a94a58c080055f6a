package domain

import "time"

// Represents one docking station as published by the bikeshare feed.
// Stations are built once per run by the feed normalizer and never mutated.
type Station struct {
	// ID is the feed-unique station_id.
	ID string
	// LogicalID is the identifier written to ref:gbfs. It equals ID unless
	// the operator publishes its stable identifier in short_name.
	LogicalID string
	Name      string
	ShortName string
	Position  Coordinates
	Capacity  int
	// CapacityKnown is false when the feed omits capacity.
	CapacityKnown bool
}

// System-level metadata from system_information.json.
type SystemInfo struct {
	SystemID    string
	Name        string
	Operator    string
	PhoneNumber string
	URL         string
	Language    string
}

// Normalized feed contents for one run.
type Feed struct {
	System      SystemInfo
	Stations    []Station
	LastUpdated time.Time
}
