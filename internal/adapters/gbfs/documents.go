package gbfs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"gbfs2osm/internal/domain"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	docDiscovery   = "gbfs"
	docStationInfo = "station_information"
	docSystemInfo  = "system_information"
)

// Common header of every GBFS document.
type envelope struct {
	LastUpdated json.RawMessage `json:"last_updated"`
	TTL         json.Number     `json:"ttl"`
	Version     string          `json:"version"`
	Data        json.RawMessage `json:"data"`
}

type feedLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type feedList struct {
	Feeds []feedLink `json:"feeds"`
}

// lastUpdated reads a POSIX timestamp (v1, v2) or an RFC 3339 string (v3).
// Unparseable values yield the zero time.
func (e *envelope) lastUpdated() time.Time {
	raw := bytes.TrimSpace(e.LastUpdated)
	if len(raw) == 0 {
		return time.Time{}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
		return time.Time{}
	}
	secs, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

// decodeData decodes the data object keeping numbers as json.Number.
func decodeData(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// isStationInformation reports whether data carries a stations list.
func isStationInformation(data json.RawMessage) bool {
	var probe struct {
		Stations json.RawMessage `json:"stations"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return len(probe.Stations) > 0 && probe.Stations[0] == '['
}

// discoverFeeds returns the feed links of a discovery document.
// v3 lists feeds directly; v1 and v2 nest them per language, in which case
// language is preferred, then "en", then the first language in lexical order.
func discoverFeeds(data json.RawMessage, language string) ([]feedLink, string, error) {
	var flat feedList
	if err := json.Unmarshal(data, &flat); err == nil && flat.Feeds != nil {
		return flat.Feeds, language, nil
	}

	var perLanguage map[string]feedList
	if err := json.Unmarshal(data, &perLanguage); err != nil {
		return nil, "", fmt.Errorf("data is neither a feed list nor a per-language map: %w", err)
	}
	if len(perLanguage) == 0 {
		return nil, "", errors.New("no feeds listed")
	}

	langs := make([]string, 0, len(perLanguage))
	for l := range perLanguage {
		langs = append(langs, l)
	}
	slices.Sort(langs)

	chosen := langs[0]
	for _, want := range []string{language, "en"} {
		if want == "" {
			continue
		}
		if i := slices.IndexFunc(langs, func(l string) bool { return strings.EqualFold(l, want) }); i >= 0 {
			chosen = langs[i]
			break
		}
	}

	return perLanguage[chosen].Feeds, chosen, nil
}

func feedURL(feeds []feedLink, name string) string {
	for _, f := range feeds {
		if f.Name == name && strings.TrimSpace(f.URL) != "" {
			return strings.TrimSpace(f.URL)
		}
	}
	return ""
}

// stationRecords extracts the raw station list of a station_information document.
func stationRecords(data json.RawMessage) ([]map[string]any, error) {
	var doc struct {
		Stations []json.RawMessage `json:"stations"`
	}
	if err := decodeData(data, &doc); err != nil {
		return nil, domain.WrapMalformedFeed(docStationInfo, fmt.Errorf("decode data: %w", err))
	}
	if doc.Stations == nil {
		return nil, domain.WrapMalformedFeed(docStationInfo, errors.New("missing stations list"))
	}

	records := make([]map[string]any, 0, len(doc.Stations))
	for i, raw := range doc.Stations {
		var rec map[string]any
		if err := decodeData(raw, &rec); err != nil {
			return nil, domain.NewMalformedFeedError(docStationInfo, i, "", "", "record is not an object")
		}
		records = append(records, rec)
	}
	return records, nil
}

// systemInfo decodes the fields of system_information used for tagging.
// Text fields may be plain strings or localized lists.
func systemInfo(data json.RawMessage, language string) (domain.SystemInfo, error) {
	var doc map[string]any
	if err := decodeData(data, &doc); err != nil {
		return domain.SystemInfo{}, domain.WrapMalformedFeed(docSystemInfo, fmt.Errorf("decode data: %w", err))
	}

	text := func(key string) (string, error) {
		v, ok := doc[key]
		if !ok || v == nil {
			return "", nil
		}
		s, err := domain.LocalizedText(v, language)
		if err != nil {
			return "", domain.NewMalformedFeedError(docSystemInfo, -1, "", key, err.Error())
		}
		return strings.TrimSpace(s), nil
	}

	var (
		info domain.SystemInfo
		err  error
	)
	if info.SystemID, err = text("system_id"); err != nil {
		return domain.SystemInfo{}, err
	}
	if info.Name, err = text("name"); err != nil {
		return domain.SystemInfo{}, err
	}
	if info.Operator, err = text("operator"); err != nil {
		return domain.SystemInfo{}, err
	}
	if info.PhoneNumber, err = text("phone_number"); err != nil {
		return domain.SystemInfo{}, err
	}
	if info.URL, err = text("url"); err != nil {
		return domain.SystemInfo{}, err
	}
	if info.Language, err = text("language"); err != nil {
		return domain.SystemInfo{}, err
	}
	if info.Language == "" {
		if langs, ok := doc["languages"].([]any); ok && len(langs) > 0 {
			info.Language, _ = langs[0].(string)
		}
	}

	return info, nil
}
