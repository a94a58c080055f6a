package gbfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"gbfs2osm/internal/domain"
	"io"
	"net/http"
	"strings"
)

// Cap on a single feed document.
const maxDocumentBytes = 32 << 20

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// getDocument fetches one GBFS document and decodes its envelope. Numbers
// are kept as json.Number so the normalizer sees them exactly.
//
// Transport and HTTP errors are reported as an unavailable backend; a body
// that is not a GBFS document is a malformed feed.
func (c *Client) getDocument(ctx context.Context, name, url string) (*envelope, error) {
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, domain.NewInvalidConfigurationError("gbfs-feed-url", url, err.Error())
	}

	resp, err := c.do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var he *httpStatusError
		if errors.As(err, &he) {
			return nil, domain.NewBackendUnavailableError(backendName, he.Code, name+": "+he.Body, err)
		}
		return nil, domain.NewBackendUnavailableError(backendName, 0, name+": "+err.Error(), err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentBytes))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, domain.WrapMalformedFeed(name, fmt.Errorf("decode: %w", err))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, domain.WrapMalformedFeed(name, errors.New("missing data object"))
	}

	return &env, nil
}
