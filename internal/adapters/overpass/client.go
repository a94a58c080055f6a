package overpass

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"gbfs2osm/internal/adapters/cache"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/logging"
	"gbfs2osm/internal/platform/obs"
	"gbfs2osm/internal/ports"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	backendName = "overpass"

	// DefaultEndpoint is the main public Overpass instance.
	DefaultEndpoint = "https://overpass-api.de/api/interpreter"

	// DefaultQueryTimeout is the server-side timeout sent with each query.
	DefaultQueryTimeout = 180 * time.Second

	maxResponseBytes = 256 << 20
)

// Config configures Client.
type Config struct {
	Endpoint     string
	QueryTimeout time.Duration
	UserAgent    string
	// HTTPTimeout bounds one request; it defaults to QueryTimeout plus a margin.
	HTTPTimeout time.Duration
}

// Client implements ports.EntityFetcher against the Overpass API.
//
// Raw responses are stored in the injected cache keyed by the query text.
// A cache that fails is logged and bypassed; it never fails a fetch.
type Client struct {
	session      *http.Client
	endpoint     string
	queryTimeout time.Duration
	userAgent    string
	cache        ports.ResponseCache
}

var _ ports.EntityFetcher = (*Client)(nil)

func NewClient(cfg Config, responses ports.ResponseCache) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewInvalidConfigurationError("overpass-url", cfg.Endpoint, "must be an absolute http(s) URL")
	}

	qt := cfg.QueryTimeout
	if qt <= 0 {
		qt = DefaultQueryTimeout
	}
	ht := cfg.HTTPTimeout
	if ht <= 0 {
		ht = qt + 30*time.Second
	}
	if responses == nil {
		responses = cache.NopResponseCache{}
	}

	return &Client{
		session:      &http.Client{Timeout: ht},
		endpoint:     u.String(),
		queryTimeout: qt,
		userAgent:    cfg.UserAgent,
		cache:        responses,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.session = hc
	return c
}

// Query builds the Overpass QL for nodes carrying filter inside bounds.
func Query(bounds domain.BoundingBox, filter domain.CategoryFilter, timeout time.Duration) string {
	return fmt.Sprintf(`[out:json][timeout:%d];node[%s=%s](%s);out meta;`,
		int(timeout.Seconds()), quote(filter.Key), quote(filter.Value), bounds.String())
}

// CacheKey identifies a query against one endpoint.
func CacheKey(endpoint, query string) string {
	sum := sha256.Sum256([]byte(endpoint + "\n" + query))
	return "overpass:" + hex.EncodeToString(sum[:])
}

// FetchEntities returns every node matching filter inside bounds.
func (c *Client) FetchEntities(
	ctx context.Context,
	bounds domain.BoundingBox,
	filter domain.CategoryFilter,
) (_ []domain.ExistingEntity, err error) {
	defer obs.Time(ctx, "overpass.FetchEntities")(&err)

	if err := bounds.Validate(); err != nil {
		return nil, domain.NewInvalidConfigurationError("bounds", bounds.String(), err.Error())
	}

	logger := logging.FromContext(ctx)
	query := Query(bounds, filter, c.queryTimeout)
	key := CacheKey(c.endpoint, query)

	if body, ok, err := c.cache.Get(ctx, key); err != nil {
		logger.Warn().Err(err).Msg("response cache read failed; querying Overpass")
	} else if ok {
		entities, err := decodeEntities(body)
		if err == nil {
			logger.Info().Int("entities", len(entities)).Msg("existing entities loaded from cache")
			return entities, nil
		}
		logger.Warn().Err(err).Msg("ignoring unreadable cached response")
	}

	logger.Info().Str("bbox", bounds.String()).Str("filter", filter.String()).Msg("querying Overpass")

	body, err := c.post(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch entities: %w", err)
	}

	entities, err := decodeEntities(body)
	if err != nil {
		return nil, fmt.Errorf("fetch entities: %w", err)
	}

	if err := c.cache.Put(ctx, key, body); err != nil {
		logger.Warn().Err(err).Msg("response cache write failed")
	}

	logger.Info().Int("entities", len(entities)).Msg("existing entities fetched")
	return entities, nil
}

func (c *Client) post(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.session.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewBackendUnavailableError(backendName, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, domain.NewBackendUnavailableError(backendName, resp.StatusCode,
			strings.TrimSpace(string(b)), errors.New(resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.NewBackendUnavailableError(backendName, resp.StatusCode, "read body", err)
	}
	return body, nil
}

// quote renders s as an Overpass QL string literal.
func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
