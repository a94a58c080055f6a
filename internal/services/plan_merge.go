package services

import (
	"gbfs2osm/internal/domain"
)

// DefaultPositionToleranceMeters is the drift below which a station is not
// considered moved, even when coordinates may be overwritten.
const DefaultPositionToleranceMeters = 1.0

// PlanOptions configures the merge planner.
type PlanOptions struct {
	Policy                  domain.OverwritePolicy
	Metadata                Metadata
	PositionToleranceMeters float64
}

// MergePlanner turns stations and pairings into planned operations.
// Created entities receive placeholder ids -1, -2, ... in call order, so a
// planner is used for one changeset only.
type MergePlanner struct {
	opts   PlanOptions
	nextID int64
}

func NewMergePlanner(opts PlanOptions) *MergePlanner {
	if opts.PositionToleranceMeters < 0 {
		opts.PositionToleranceMeters = 0
	}
	return &MergePlanner{opts: opts, nextID: -1}
}

// PlanCreate plans a new entity for an unmatched station. Every derivable
// tag is set; a zero capacity is left out since it says nothing useful
// about a docking station that exists.
func (p *MergePlanner) PlanCreate(s domain.Station) domain.PlannedOperation {
	tags := make(domain.Tags)
	changes := make([]domain.TagChange, 0, 12)
	for _, t := range DeriveTags(s, p.opts.Metadata) {
		if t.Field == domain.FieldCapacity && s.Capacity == 0 {
			continue
		}
		tags[t.Key] = t.Value
		changes = append(changes, domain.TagChange{Key: t.Key, New: t.Value})
	}

	id := p.nextID
	p.nextID--

	return domain.PlannedOperation{
		Kind:      domain.OpCreate,
		StationID: s.ID,
		EntityID:  id,
		Tags:      tags,
		Position:  s.Position,
		Changes:   changes,
	}
}

// PlanModify computes the final state of a matched entity. It reports
// false when that state equals the fetched one, in which case nothing
// should be emitted.
//
// Missing recognized keys are added. Keys already present keep their value
// unless the overwrite policy names the field. Keys the reconciler does
// not derive are never touched.
func (p *MergePlanner) PlanModify(pair domain.Pairing) (domain.PlannedOperation, bool) {
	if !pair.Matched() {
		return domain.PlannedOperation{}, false
	}

	e := pair.Entity
	s := pair.Station

	tags := e.Tags.Clone()
	if tags == nil {
		tags = make(domain.Tags)
	}

	changes := make([]domain.TagChange, 0)
	for _, t := range DeriveTags(s, p.opts.Metadata) {
		old, present := tags[t.Key]
		switch {
		case present && old == t.Value:
			continue
		case !present:
			// Adding capacity=0 would record a value the feed only reports
			// for want of data.
			if t.Field == domain.FieldCapacity && s.Capacity == 0 {
				continue
			}
		case !p.opts.Policy.Allows(t.Field):
			continue
		}

		tags[t.Key] = t.Value
		changes = append(changes, domain.TagChange{Key: t.Key, Old: old, New: t.Value})
	}

	pos := e.Position
	moved := false
	if p.opts.Policy.Allows(domain.FieldCoordinates) &&
		e.Position.DistanceTo(s.Position) > p.opts.PositionToleranceMeters {
		pos = s.Position
		moved = true
	}

	if len(changes) == 0 && !moved {
		return domain.PlannedOperation{}, false
	}

	return domain.PlannedOperation{
		Kind:      domain.OpModify,
		StationID: s.ID,
		EntityID:  e.ID,
		Version:   e.Version,
		Tags:      tags,
		Position:  pos,
		Changes:   changes,
		Moved:     moved,
	}, true
}

// Plan builds the changeset for a match result. Operations follow the
// order of stations, which is normally feed order.
func (p *MergePlanner) Plan(stations []domain.Station, result *domain.MatchResult) *domain.Changeset {
	byStation := make(map[string]domain.Pairing, len(result.Pairs))
	for _, pair := range result.Pairs {
		byStation[pair.Station.ID] = pair
	}

	cs := &domain.Changeset{
		Operations:        make([]domain.PlannedOperation, 0, len(stations)),
		UnmatchedEntities: result.UnmatchedEntities,
	}
	cs.Stats.Stations = len(stations)
	cs.Stats.UnmatchedEntities = len(result.UnmatchedEntities)

	for _, s := range stations {
		pair, ok := byStation[s.ID]
		if !ok {
			cs.Operations = append(cs.Operations, p.PlanCreate(s))
			cs.Stats.Created++
			continue
		}

		if pair.Reason == domain.MatchByReference {
			cs.Stats.MatchedByRef++
		}

		op, changed := p.PlanModify(pair)
		if !changed {
			cs.Stats.Unchanged++
			continue
		}
		cs.Operations = append(cs.Operations, op)
		cs.Stats.Modified++
	}

	return cs
}
