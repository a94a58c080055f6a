package services

import (
	"gbfs2osm/internal/domain"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Constant tags applied to every station, supplied by the caller and
// completed from system_information.
type Metadata struct {
	SystemID         string
	Operator         string
	Network          string
	OperatorWikidata string
	NetworkWikidata  string
	Phone            string
	Website          string
}

// A tag value derived from the feed, with the field that governs it.
type DerivedTag struct {
	Field domain.Field
	Key   string
	Value string
}

// CleanName trims a feed name, collapses repeated whitespace and puts it in
// Unicode NFC form.
func CleanName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// RefValue is the ref:gbfs value for a station: "<system_id>:<logical id>",
// or the bare logical id when the system id is unknown.
func RefValue(systemID, logicalID string) string {
	if systemID == "" {
		return logicalID
	}
	return systemID + ":" + logicalID
}

// DeriveTags returns every tag the reconciler can derive for s, in a fixed
// order. Empty values are omitted, so an absent optional feed value never
// produces a tag.
func DeriveTags(s domain.Station, md Metadata) []DerivedTag {
	tags := make([]DerivedTag, 0, 12)
	add := func(f domain.Field, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		tags = append(tags, DerivedTag{Field: f, Key: f.TagKey(), Value: value})
	}

	add(domain.FieldCategory, domain.AmenityBicycleRental)
	add(domain.FieldBicycleRental, domain.BicycleRentalDockingStation)
	add(domain.FieldName, CleanName(s.Name))
	add(domain.FieldRef, RefValue(md.SystemID, s.LogicalID))
	add(domain.FieldNetwork, md.Network)
	add(domain.FieldOperator, md.Operator)
	add(domain.FieldBrand, md.Operator)
	add(domain.FieldOperatorWikidata, md.OperatorWikidata)
	add(domain.FieldNetworkWikidata, md.NetworkWikidata)
	add(domain.FieldPhone, md.Phone)
	add(domain.FieldWebsite, md.Website)
	if s.CapacityKnown {
		add(domain.FieldCapacity, strconv.Itoa(s.Capacity))
	}

	return tags
}
