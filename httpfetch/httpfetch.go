// Package httpfetch provides the abstract HTTP fetcher the core depends on: a GET of a URL
// yielding a status and a body, with nothing else in the core aware of net/http.
package httpfetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dagregi/oidf-federation/errors"
)

// Fetcher performs an HTTP GET against a URL and returns the response body, having already
// checked for a 200 status and the expected Content-Type. Implementations must be safe for
// concurrent use.
type Fetcher interface {
	Get(ctx context.Context, url string, contentType string) ([]byte, error)
}

// Client is a Fetcher backed by net/http.
type Client struct {
	http http.Client
}

// New returns a Client with the given request timeout applied to every GET.
func New(timeout time.Duration) *Client {
	return &Client{http: http.Client{Timeout: timeout}}
}

// Get performs the GET. If contentType is non-empty, the response's Content-Type header must
// match exactly, or the fetch is treated as a failure.
func (c *Client) Get(ctx context.Context, url string, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Kindf(errors.FetchFailure, "failed to build request for %s: %w", url, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Kindf(errors.FetchFailure, "failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Kindf(errors.FetchFailure, "failed to read response body from %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Kindf(errors.FetchFailure, "unexpected status %d fetching %s: %s", resp.StatusCode, url, string(body))
	}

	if contentType != "" && resp.Header.Get("Content-Type") != contentType {
		return nil, errors.Kindf(errors.FetchFailure, "unexpected content-type %q fetching %s", resp.Header.Get("Content-Type"), url)
	}

	return body, nil
}
