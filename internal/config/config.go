// Package config loads and validates gbfs2osm options from flags,
// environment variables, .env files, an optional config file and an
// optional systems presets file.
package config

import (
	"errors"
	"fmt"
	"gbfs2osm/internal/domain"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. GBFS2OSM_OPERATOR.
const EnvPrefix = "GBFS2OSM"

// Option names, shared by flags, config file keys and environment variables.
const (
	KeyFeedURL           = "gbfs-feed-url"
	KeyOutputFile        = "output-file"
	KeyOperator          = "operator"
	KeyNetwork           = "network"
	KeyOperatorWikidata  = "operator-wikidata-id"
	KeyNetworkWikidata   = "network-wikidata-id"
	KeyUseShortName      = "use-short-name-for-station-id"
	KeyOverwrite         = "overwrite"
	KeyMatchDistance     = "match-distance"
	KeyPositionTolerance = "position-tolerance"
	KeyRefMatchMax       = "ref-match-max-distance"
	KeyBoundsPadding     = "bounds-padding"
	KeyLanguage          = "language"
	KeyOverpassURL       = "overpass-url"
	KeyOverpassTimeout   = "overpass-timeout"
	KeyHTTPTimeout       = "http-timeout"
	KeyUserAgent         = "user-agent"
	KeyCacheBackend      = "cache-backend"
	KeyCacheDir          = "cache-dir"
	KeyCacheDSN          = "cache-dsn"
	KeyCacheTTL          = "cache-ttl"
	KeyCacheMemory       = "cache-memory-entries"
	KeyFormat            = "format"
	KeyOSMExtract        = "osm-extract"
	KeyListen            = "listen"
	KeySystem            = "system"
	KeySystemsFile       = "systems-file"
	KeyLogLevel          = "log-level"
	KeyLogFormat         = "log-format"
)

// Config holds every option after merging all sources.
type Config struct {
	FeedURL          string `opt:"gbfs-feed-url" validate:"required,url"`
	OutputFile       string `opt:"output-file"`
	Operator         string `opt:"operator"`
	Network          string `opt:"network"`
	OperatorWikidata string `opt:"operator-wikidata-id" validate:"omitempty,wikidata"`
	NetworkWikidata  string `opt:"network-wikidata-id" validate:"omitempty,wikidata"`
	UseShortName     bool   `opt:"use-short-name-for-station-id"`
	Overwrite        []string
	Policy           domain.OverwritePolicy

	MatchDistance       float64 `opt:"match-distance" validate:"gt=0"`
	PositionTolerance   float64 `opt:"position-tolerance" validate:"gte=0"`
	RefMatchMaxDistance float64 `opt:"ref-match-max-distance" validate:"gte=0"`
	BoundsPadding       float64 `opt:"bounds-padding" validate:"gte=0,lte=1"`
	Language            string  `opt:"language"`

	OverpassURL     string        `opt:"overpass-url" validate:"required,url"`
	OverpassTimeout time.Duration `opt:"overpass-timeout" validate:"gt=0"`
	HTTPTimeout     time.Duration `opt:"http-timeout" validate:"gt=0"`
	UserAgent       string        `opt:"user-agent" validate:"required"`

	CacheBackend       string        `opt:"cache-backend" validate:"oneof=leveldb sqlite postgres redis none"`
	CacheDir           string        `opt:"cache-dir"`
	CacheDSN           string        `opt:"cache-dsn"`
	CacheTTL           time.Duration `opt:"cache-ttl" validate:"gte=0"`
	CacheMemoryEntries int           `opt:"cache-memory-entries" validate:"gte=0"`

	Format     string `opt:"format" validate:"omitempty,oneof=osm osmchange"`
	OSMExtract string `opt:"osm-extract"`
	Listen     string `opt:"listen"`

	System      string `opt:"system"`
	SystemsFile string `opt:"systems-file"`

	LogLevel  string `opt:"log-level"`
	LogFormat string `opt:"log-format"`
}

var envKeyReplacer = strings.NewReplacer("-", "_", ".", "_")

// BindEnv makes v read GBFS2OSM_* environment variables, dashes in option
// names becoming underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
}

// Defaults registers default values on v.
func Defaults(v *viper.Viper) {
	v.SetDefault(KeyMatchDistance, 50.0)
	v.SetDefault(KeyPositionTolerance, 1.0)
	v.SetDefault(KeyRefMatchMax, 0.0)
	v.SetDefault(KeyBoundsPadding, domain.DefaultBoundsPadding)
	v.SetDefault(KeyLanguage, "en")
	v.SetDefault(KeyOverpassURL, "https://overpass-api.de/api/interpreter")
	v.SetDefault(KeyOverpassTimeout, 180*time.Second)
	v.SetDefault(KeyHTTPTimeout, 60*time.Second)
	v.SetDefault(KeyCacheBackend, "leveldb")
	v.SetDefault(KeyCacheDir, ".cache")
	v.SetDefault(KeyCacheTTL, 24*time.Hour)
	v.SetDefault(KeyCacheMemory, 0)
	v.SetDefault(KeyListen, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
}

// Load builds a validated Config from v. A selected system preset fills in
// the options the caller left empty.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		FeedURL:             strings.TrimSpace(v.GetString(KeyFeedURL)),
		OutputFile:          strings.TrimSpace(v.GetString(KeyOutputFile)),
		Operator:            strings.TrimSpace(v.GetString(KeyOperator)),
		Network:             strings.TrimSpace(v.GetString(KeyNetwork)),
		OperatorWikidata:    strings.TrimSpace(v.GetString(KeyOperatorWikidata)),
		NetworkWikidata:     strings.TrimSpace(v.GetString(KeyNetworkWikidata)),
		UseShortName:        v.GetBool(KeyUseShortName),
		Overwrite:           v.GetStringSlice(KeyOverwrite),
		MatchDistance:       v.GetFloat64(KeyMatchDistance),
		PositionTolerance:   v.GetFloat64(KeyPositionTolerance),
		RefMatchMaxDistance: v.GetFloat64(KeyRefMatchMax),
		BoundsPadding:       v.GetFloat64(KeyBoundsPadding),
		Language:            strings.TrimSpace(v.GetString(KeyLanguage)),
		OverpassURL:         strings.TrimSpace(v.GetString(KeyOverpassURL)),
		OverpassTimeout:     v.GetDuration(KeyOverpassTimeout),
		HTTPTimeout:         v.GetDuration(KeyHTTPTimeout),
		UserAgent:           strings.TrimSpace(v.GetString(KeyUserAgent)),
		CacheBackend:        strings.ToLower(strings.TrimSpace(v.GetString(KeyCacheBackend))),
		CacheDir:            v.GetString(KeyCacheDir),
		CacheDSN:            strings.TrimSpace(v.GetString(KeyCacheDSN)),
		CacheTTL:            v.GetDuration(KeyCacheTTL),
		CacheMemoryEntries:  v.GetInt(KeyCacheMemory),
		Format:              normalizeFormat(v.GetString(KeyFormat)),
		OSMExtract:          strings.TrimSpace(v.GetString(KeyOSMExtract)),
		Listen:              v.GetString(KeyListen),
		System:              strings.TrimSpace(v.GetString(KeySystem)),
		SystemsFile:         strings.TrimSpace(v.GetString(KeySystemsFile)),
		LogLevel:            v.GetString(KeyLogLevel),
		LogFormat:           v.GetString(KeyLogFormat),
	}

	if cfg.System != "" {
		if cfg.SystemsFile == "" {
			return nil, domain.NewInvalidConfigurationError(KeySystem, cfg.System, "requires --systems-file")
		}
		systems, err := LoadSystems(cfg.SystemsFile)
		if err != nil {
			return nil, err
		}
		sys, err := SelectSystem(systems, cfg.System)
		if err != nil {
			return nil, err
		}
		cfg.applySystem(sys)
	}

	policy, err := domain.ParseOverwritePolicy(cfg.Overwrite)
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySystem copies preset values into options left empty.
func (c *Config) applySystem(s System) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = strings.TrimSpace(src)
		}
	}
	fill(&c.FeedURL, s.FeedURL)
	fill(&c.Operator, s.Operator)
	fill(&c.Network, s.Network)
	fill(&c.OperatorWikidata, s.OperatorWikidata)
	fill(&c.NetworkWikidata, s.NetworkWikidata)
	if s.UseShortName {
		c.UseShortName = true
	}
	if len(c.Overwrite) == 0 {
		c.Overwrite = s.Overwrite
	}
}

var wikidataID = regexp.MustCompile(`^Q[1-9][0-9]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("opt"); name != "" {
			return name
		}
		return fld.Name
	})
	_ = v.RegisterValidation("wikidata", func(fl validator.FieldLevel) bool {
		return wikidataID.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks field rules and cross-option constraints. Every failure
// is a *domain.InvalidConfigurationError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.NewInvalidConfigurationError(fe.Field(), fe.Value(), describe(fe))
		}
		return domain.NewInvalidConfigurationError("", nil, err.Error())
	}

	switch c.CacheBackend {
	case "postgres", "redis":
		if c.CacheDSN == "" {
			return domain.NewInvalidConfigurationError(KeyCacheDSN, "", c.CacheBackend+" cache backend requires --cache-dsn")
		}
	case "leveldb":
		if strings.TrimSpace(c.CacheDir) == "" {
			return domain.NewInvalidConfigurationError(KeyCacheDir, "", "leveldb cache backend requires --cache-dir")
		}
	}

	if c.Format != "" && c.OutputFile != "" {
		isOsc := strings.EqualFold(filepath.Ext(c.OutputFile), ".osc")
		if (c.Format == "osmchange") != isOsc {
			return domain.NewInvalidConfigurationError(KeyFormat, c.Format,
				fmt.Sprintf("does not match the extension of %q", c.OutputFile))
		}
	}

	return nil
}

// RequireOutput checks the options needed to write a changeset file.
func (c *Config) RequireOutput() error {
	if c.OutputFile == "" {
		return domain.NewInvalidConfigurationError(KeyOutputFile, "", "is required")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be an absolute URL"
	case "wikidata":
		return "must be a Wikidata item id such as Q386"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must not be less than " + fe.Param()
	case "lte":
		return "must not be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func normalizeFormat(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "osc", "osmchange":
		return "osmchange"
	case "josm", "osm":
		return "osm"
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}
