package domain

import (
	"maps"
	"slices"
	"strings"
)

// Field names a value the reconciler can derive from the feed.
type Field string

const (
	FieldCategory         Field = "category"
	FieldBicycleRental    Field = "bicycle-rental"
	FieldName             Field = "name"
	FieldRef              Field = "ref"
	FieldNetwork          Field = "network"
	FieldOperator         Field = "operator"
	FieldBrand            Field = "brand"
	FieldOperatorWikidata Field = "operator-wikidata"
	FieldNetworkWikidata  Field = "network-wikidata"
	FieldPhone            Field = "phone"
	FieldWebsite          Field = "website"
	FieldCapacity         Field = "capacity"
	FieldCoordinates      Field = "coordinates"
)

// fieldTagKeys maps tag-backed fields to the key they write.
var fieldTagKeys = map[Field]string{
	FieldCategory:         TagAmenity,
	FieldBicycleRental:    TagBicycleRental,
	FieldName:             TagName,
	FieldRef:              TagRefGBFS,
	FieldNetwork:          TagNetwork,
	FieldOperator:         TagOperator,
	FieldBrand:            TagBrand,
	FieldOperatorWikidata: TagOperatorWikidata,
	FieldNetworkWikidata:  TagNetworkWikidata,
	FieldPhone:            TagOperatorPhone,
	FieldWebsite:          TagOperatorWebsite,
	FieldCapacity:         TagCapacity,
}

// overwritable lists, in display order, the fields an overwrite policy may name.
// The category tag is excluded: candidates are selected by it.
var overwritable = []Field{
	FieldBicycleRental,
	FieldName,
	FieldRef,
	FieldNetwork,
	FieldOperator,
	FieldBrand,
	FieldOperatorWikidata,
	FieldNetworkWikidata,
	FieldPhone,
	FieldWebsite,
	FieldCapacity,
	FieldCoordinates,
}

var fieldAliases = map[string]Field{
	"ref-gbfs":         FieldRef,
	"operator-phone":   FieldPhone,
	"operator-website": FieldWebsite,
	"position":         FieldCoordinates,
}

// TagKey returns the tag key written for f, or "" for coordinates.
func (f Field) TagKey() string {
	return fieldTagKeys[f]
}

func (f Field) String() string { return string(f) }

// OverwritableFields returns the field names accepted by ParseField.
func OverwritableFields() []Field {
	return slices.Clone(overwritable)
}

// ParseField resolves a user-supplied field name. Matching ignores case and
// treats '_' and ':' like '-', so "operator:wikidata" and "OPERATOR_WIKIDATA"
// both name FieldOperatorWikidata.
func ParseField(name string) (Field, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.NewReplacer("_", "-", ":", "-").Replace(norm)

	if f, ok := fieldAliases[norm]; ok {
		return f, nil
	}
	if slices.Contains(overwritable, Field(norm)) {
		return Field(norm), nil
	}

	known := make([]string, 0, len(overwritable))
	for _, f := range overwritable {
		known = append(known, string(f))
	}
	return "", NewInvalidConfigurationError("overwrite", name,
		"unknown field "+quote(name)+"; known fields: "+strings.Join(known, ", "))
}

// OverwritePolicy is the set of fields permitted to replace values already
// present on an existing entity. The zero value permits nothing.
type OverwritePolicy struct {
	fields map[Field]struct{}
}

// NewOverwritePolicy builds a policy from already-validated fields.
func NewOverwritePolicy(fields ...Field) OverwritePolicy {
	p := OverwritePolicy{fields: make(map[Field]struct{}, len(fields))}
	for _, f := range fields {
		p.fields[f] = struct{}{}
	}
	return p
}

// ParseOverwritePolicy validates user-supplied names. Each entry may itself
// be a comma separated list.
func ParseOverwritePolicy(names []string) (OverwritePolicy, error) {
	fields := make([]Field, 0, len(names))
	for _, entry := range names {
		for _, name := range strings.Split(entry, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			f, err := ParseField(name)
			if err != nil {
				return OverwritePolicy{}, err
			}
			fields = append(fields, f)
		}
	}
	return NewOverwritePolicy(fields...), nil
}

// Allows reports whether f may overwrite an existing value.
func (p OverwritePolicy) Allows(f Field) bool {
	_, ok := p.fields[f]
	return ok
}

// Fields returns the permitted fields in lexical order.
func (p OverwritePolicy) Fields() []Field {
	return slices.Sorted(maps.Keys(p.fields))
}

func quote(s string) string { return "\"" + s + "\"" }
