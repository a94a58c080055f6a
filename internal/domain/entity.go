package domain

// Snapshot of a map entity already present in the geodata backend.
// Version is the backend's optimistic-lock counter and must be echoed back
// unchanged on modify so that submission can detect concurrent edits.
type ExistingEntity struct {
	ID       int64
	Version  int
	Position Coordinates
	Tags     Tags
}

// Tag returns the value for key, or "" when absent.
func (e ExistingEntity) Tag(key string) string {
	return e.Tags[key]
}

// GBFSRefs returns every value recorded in the ref:gbfs tag.
func (e ExistingEntity) GBFSRefs() []string {
	return splitValues(e.Tags[TagRefGBFS])
}
