package domain

// Kind of change planned for one station.
type OperationKind int

const (
	OpCreate OperationKind = iota + 1
	OpModify
)

func (k OperationKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	default:
		return "unknown"
	}
}

// One tag difference of a planned modify. Old is "" when the key was added.
type TagChange struct {
	Key string
	Old string
	New string
}

// Represents the planned final state of one map entity.
//
// A create carries a negative placeholder EntityID and Version 0.
// A modify carries the fetched EntityID and Version unchanged, so that the
// backend can reject the edit if the entity moved on since it was fetched.
type PlannedOperation struct {
	Kind      OperationKind
	StationID string
	EntityID  int64
	Version   int
	Tags      Tags
	Position  Coordinates
	// Changes and Moved describe a modify relative to the fetched entity.
	Changes []TagChange
	Moved   bool
}

// Summary counts for one run.
type ChangesetStats struct {
	Stations          int
	Created           int
	Modified          int
	Unchanged         int
	MatchedByRef      int
	UnmatchedEntities int
}

// Changeset is the planner's output, consumed by a changeset writer.
// Operations are ordered as the stations appear in the feed.
type Changeset struct {
	Operations        []PlannedOperation
	UnmatchedEntities []ExistingEntity
	Stats             ChangesetStats
}

// Creates returns the create operations in order.
func (c *Changeset) Creates() []PlannedOperation {
	return c.filter(OpCreate)
}

// Modifies returns the modify operations in order.
func (c *Changeset) Modifies() []PlannedOperation {
	return c.filter(OpModify)
}

// Empty reports whether nothing needs to be written.
func (c *Changeset) Empty() bool {
	return len(c.Operations) == 0
}

func (c *Changeset) filter(kind OperationKind) []PlannedOperation {
	out := make([]PlannedOperation, 0, len(c.Operations))
	for _, op := range c.Operations {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}
