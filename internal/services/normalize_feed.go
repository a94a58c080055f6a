package services

import (
	"encoding/json"
	"fmt"
	"gbfs2osm/internal/domain"
	"math"
	"strconv"
	"strings"
)

const stationDocument = "station_information"

// NormalizeOptions controls how raw station_information records become stations.
type NormalizeOptions struct {
	// UseShortNameAsID makes short_name the identifier written to ref:gbfs.
	// Some operators renumber station_id while short_name stays stable.
	UseShortNameAsID bool
	// Language selects among localized names (GBFS v3). Empty means the
	// first entry.
	Language string
}

// NormalizeStations validates loosely typed station records and converts
// them to stations, preserving feed order.
//
// station_id, lat and lon are required. Every type or range violation, in
// required or optional fields alike, fails the whole feed with a
// *domain.MalformedFeedError so that malformed data never reaches matching.
func NormalizeStations(records []map[string]any, opts NormalizeOptions) ([]domain.Station, error) {
	stations := make([]domain.Station, 0, len(records))
	seen := make(map[string]int, len(records))
	seenLogical := make(map[string]int, len(records))

	for i, rec := range records {
		s, err := normalizeStation(i, rec, opts)
		if err != nil {
			return nil, err
		}

		if prev, dup := seen[s.ID]; dup {
			return nil, domain.NewMalformedFeedError(stationDocument, i, s.ID, "station_id",
				fmt.Sprintf("duplicates record %d", prev))
		}
		seen[s.ID] = i

		if opts.UseShortNameAsID {
			if prev, dup := seenLogical[s.LogicalID]; dup {
				return nil, domain.NewMalformedFeedError(stationDocument, i, s.ID, "short_name",
					fmt.Sprintf("%q is also the short_name of record %d", s.LogicalID, prev))
			}
			seenLogical[s.LogicalID] = i
		}

		stations = append(stations, s)
	}

	return stations, nil
}

func normalizeStation(i int, rec map[string]any, opts NormalizeOptions) (domain.Station, error) {
	malformed := func(stationID, field, msg string) error {
		return domain.NewMalformedFeedError(stationDocument, i, stationID, field, msg)
	}

	if rec == nil {
		return domain.Station{}, malformed("", "", "record is not an object")
	}

	rawID, ok := rec["station_id"]
	if !ok || rawID == nil {
		return domain.Station{}, malformed("", "station_id", "missing")
	}
	id, err := coerceID(rawID)
	if err != nil {
		return domain.Station{}, malformed("", "station_id", err.Error())
	}

	lat, err := requiredFloat(rec, "lat")
	if err != nil {
		return domain.Station{}, malformed(id, "lat", err.Error())
	}
	lon, err := requiredFloat(rec, "lon")
	if err != nil {
		return domain.Station{}, malformed(id, "lon", err.Error())
	}
	pos := domain.Coordinates{Lat: lat, Lon: lon}
	if !pos.Valid() {
		return domain.Station{}, malformed(id, "lat/lon", fmt.Sprintf("out of range (%g, %g)", lat, lon))
	}

	name, err := optionalText(rec, "name", opts.Language)
	if err != nil {
		return domain.Station{}, malformed(id, "name", err.Error())
	}
	shortName, err := optionalText(rec, "short_name", opts.Language)
	if err != nil {
		return domain.Station{}, malformed(id, "short_name", err.Error())
	}

	s := domain.Station{
		ID:        id,
		LogicalID: id,
		Name:      name,
		ShortName: strings.TrimSpace(shortName),
		Position:  pos,
	}

	if raw, ok := rec["capacity"]; ok && raw != nil {
		c, err := coerceInt(raw)
		if err != nil {
			return domain.Station{}, malformed(id, "capacity", err.Error())
		}
		if c < 0 {
			return domain.Station{}, malformed(id, "capacity", fmt.Sprintf("negative value %d", c))
		}
		s.Capacity = c
		s.CapacityKnown = true
	}

	if opts.UseShortNameAsID {
		if s.ShortName == "" {
			return domain.Station{}, malformed(id, "short_name", "required when short name is used as station id")
		}
		s.LogicalID = s.ShortName
	}

	return s, nil
}

// coerceID accepts a non-empty string or an integral number.
func coerceID(v any) (string, error) {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return s, nil
		}
		return "", fmt.Errorf("empty")
	case json.Number:
		if _, err := t.Int64(); err != nil {
			return "", fmt.Errorf("non-integral number %s", t)
		}
		return t.String(), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return "", fmt.Errorf("non-integral number %g", t)
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

func requiredFloat(rec map[string]any, key string) (float64, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing")
	}
	return coerceFloat(v)
}

// coerceFloat accepts numbers and numeric strings.
func coerceFloat(v any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	if err != nil {
		return 0, fmt.Errorf("not a number: %v", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", v)
	}
	return f, nil
}

// coerceInt accepts integral numbers and integral numeric strings.
func coerceInt(v any) (int, error) {
	f, err := coerceFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integral number %v", v)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("out of range %v", v)
	}
	return int(f), nil
}

// optionalText reads a plain string (GBFS v1/v2) or a localized string list
// [{"text": ..., "language": ...}] (GBFS v3).
func optionalText(rec map[string]any, key, language string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", nil
	}
	return domain.LocalizedText(v, language)
}
