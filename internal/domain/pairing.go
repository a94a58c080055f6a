package domain

// How a station was bound to an existing entity.
type MatchReason int

const (
	// MatchByReference means the entity's ref:gbfs tag names the station.
	MatchByReference MatchReason = iota + 1
	// MatchByProximity means the pair was the closest one within the threshold.
	MatchByProximity
)

func (r MatchReason) String() string {
	switch r {
	case MatchByReference:
		return "reference"
	case MatchByProximity:
		return "proximity"
	default:
		return "none"
	}
}

// A station bound to at most one existing entity. Entity is nil for a
// station with no match.
type Pairing struct {
	Station        Station
	Entity         *ExistingEntity
	DistanceMeters float64
	Reason         MatchReason
}

// Matched reports whether the pairing carries an entity.
func (p Pairing) Matched() bool { return p.Entity != nil }

// Output of the matcher. Pairs holds only bound pairs; every station and
// every entity appears in exactly one of the three slices.
type MatchResult struct {
	Pairs             []Pairing
	UnmatchedStations []Station
	UnmatchedEntities []ExistingEntity
}
