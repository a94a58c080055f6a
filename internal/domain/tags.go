package domain

import (
	"maps"
	"slices"
	"strings"
)

// Tag keys written or read by the reconciler.
const (
	TagAmenity          = "amenity"
	TagBicycleRental    = "bicycle_rental"
	TagName             = "name"
	TagRefGBFS          = "ref:gbfs"
	TagNetwork          = "network"
	TagOperator         = "operator"
	TagBrand            = "brand"
	TagOperatorWikidata = "operator:wikidata"
	TagNetworkWikidata  = "network:wikidata"
	TagOperatorPhone    = "operator:phone"
	TagOperatorWebsite  = "operator:website"
	TagCapacity         = "capacity"

	AmenityBicycleRental        = "bicycle_rental"
	BicycleRentalDockingStation = "docking_station"
)

// Key/value tag mapping of a map entity. Keys are unique.
type Tags map[string]string

// Clone returns an independent copy; a nil receiver yields an empty map.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	maps.Copy(out, t)
	return out
}

// Equal reports whether both mappings hold the same keys and values.
func (t Tags) Equal(o Tags) bool {
	return maps.Equal(t, o)
}

// Keys returns the tag keys in lexical order.
func (t Tags) Keys() []string {
	return slices.Sorted(maps.Keys(t))
}

// CategoryFilter is the tag signature identifying candidate entities.
type CategoryFilter struct {
	Key   string
	Value string
}

// BicycleRentalFilter selects amenity=bicycle_rental entities.
var BicycleRentalFilter = CategoryFilter{Key: TagAmenity, Value: AmenityBicycleRental}

// Matches reports whether tags carry the filter's key with the filter's value.
func (f CategoryFilter) Matches(tags Tags) bool {
	return tags[f.Key] == f.Value
}

func (f CategoryFilter) String() string {
	return f.Key + "=" + f.Value
}

// splitValues splits a semicolon separated multi-value tag.
func splitValues(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
