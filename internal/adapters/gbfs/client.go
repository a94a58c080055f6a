package gbfs

import (
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/logging"
	"gbfs2osm/internal/platform/obs"
	"gbfs2osm/internal/ports"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const backendName = "gbfs"

// Config configures Client.
type Config struct {
	// FeedURL is a gbfs.json discovery document or a station_information document.
	FeedURL string
	// Language selects among per-language feeds and localized strings.
	Language  string
	UserAgent string
	Timeout   time.Duration
}

// Client implements ports.StationSource over HTTP.
//
// Requests are never retried: a failed fetch aborts the run and the caller
// may re-invoke. The client is safe for concurrent use.
type Client struct {
	session   *http.Client
	feedURL   string
	language  string
	userAgent string
}

var _ ports.StationSource = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.FeedURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewInvalidConfigurationError("gbfs-feed-url", cfg.FeedURL, "must be an absolute http(s) URL")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		session:   &http.Client{Timeout: timeout},
		feedURL:   u.String(),
		language:  cfg.Language,
		userAgent: cfg.UserAgent,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.session = hc
	return c
}

// FetchFeed resolves the discovery document, then fetches station_information
// and system_information concurrently.
func (c *Client) FetchFeed(ctx context.Context) (_ *ports.RawFeed, err error) {
	defer obs.Time(ctx, "gbfs.FetchFeed")(&err)

	logger := logging.FromContext(ctx)
	logger.Info().Str("url", c.feedURL).Msg("fetching GBFS feed")

	root, err := c.getDocument(ctx, docDiscovery, c.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	// Some systems publish station_information without discovery.
	if isStationInformation(root.Data) {
		records, err := stationRecords(root.Data)
		if err != nil {
			return nil, fmt.Errorf("fetch feed: %w", err)
		}
		logger.Warn().Msg("feed URL is a station_information document; without system_information " +
			"ref:gbfs values have no system prefix")
		return &ports.RawFeed{Stations: records, LastUpdated: root.lastUpdated()}, nil
	}

	feeds, lang, err := discoverFeeds(root.Data, c.language)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", domain.WrapMalformedFeed(docDiscovery, err))
	}

	stationURL := feedURL(feeds, docStationInfo)
	if stationURL == "" {
		return nil, fmt.Errorf("fetch feed: %w",
			domain.WrapMalformedFeed(docDiscovery, errors.New("no station_information feed listed")))
	}
	systemURL := feedURL(feeds, docSystemInfo)

	var (
		stations *envelope
		system   *envelope
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env, err := c.getDocument(gctx, docStationInfo, stationURL)
		stations = env
		return err
	})
	if systemURL != "" {
		g.Go(func() error {
			env, err := c.getDocument(gctx, docSystemInfo, systemURL)
			system = env
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	records, err := stationRecords(stations.Data)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	out := &ports.RawFeed{Stations: records, LastUpdated: stations.lastUpdated()}

	if system != nil {
		info, err := systemInfo(system.Data, lang)
		if err != nil {
			return nil, fmt.Errorf("fetch feed: %w", err)
		}
		out.System = info
	} else {
		logger.Warn().Msg("discovery lists no system_information feed")
	}
	if out.System.Language == "" {
		out.System.Language = lang
	}

	logger.Info().
		Str("system_id", out.System.SystemID).
		Int("stations", len(records)).
		Time("last_updated", out.LastUpdated).
		Msg("GBFS feed fetched")

	return out, nil
}
