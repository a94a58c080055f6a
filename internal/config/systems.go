package config

import (
	"fmt"
	"gbfs2osm/internal/domain"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// System is a named preset for one bikeshare system.
type System struct {
	Name             string   `yaml:"name" validate:"required"`
	FeedURL          string   `yaml:"gbfs_feed_url" validate:"required,url"`
	Operator         string   `yaml:"operator"`
	Network          string   `yaml:"network"`
	OperatorWikidata string   `yaml:"operator_wikidata_id" validate:"omitempty,wikidata"`
	NetworkWikidata  string   `yaml:"network_wikidata_id" validate:"omitempty,wikidata"`
	UseShortName     bool     `yaml:"use_short_name_for_station_id"`
	Overwrite        []string `yaml:"overwrite"`
}

type systemsFile struct {
	Systems []System `yaml:"systems"`
}

// LoadSystems reads and validates a presets file.
func LoadSystems(path string) ([]System, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewInvalidConfigurationError(KeySystemsFile, path, err.Error())
	}
	return ParseSystems(data)
}

// ParseSystems decodes a presets document:
//
//	systems:
//	  - name: bixi
//	    gbfs_feed_url: https://gbfs.velobixi.com/gbfs/2-2/gbfs.json
//	    operator: PBSC
func ParseSystems(data []byte) ([]System, error) {
	var f systemsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.NewInvalidConfigurationError(KeySystemsFile, nil, fmt.Sprintf("parse: %v", err))
	}

	seen := make(map[string]struct{}, len(f.Systems))
	for i, s := range f.Systems {
		if err := validate.Struct(s); err != nil {
			return nil, domain.NewInvalidConfigurationError(KeySystemsFile, s.Name,
				fmt.Sprintf("system #%d: %v", i+1, err))
		}
		key := strings.ToLower(s.Name)
		if _, dup := seen[key]; dup {
			return nil, domain.NewInvalidConfigurationError(KeySystemsFile, s.Name, "duplicate system name")
		}
		seen[key] = struct{}{}
	}

	return f.Systems, nil
}

// SelectSystem finds a preset by name, ignoring case.
func SelectSystem(systems []System, name string) (System, error) {
	for _, s := range systems {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}

	names := make([]string, 0, len(systems))
	for _, s := range systems {
		names = append(names, s.Name)
	}
	return System{}, domain.NewInvalidConfigurationError(KeySystem, name,
		"unknown system; known systems: "+strings.Join(names, ", "))
}
