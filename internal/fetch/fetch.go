// Package fetch retrieves a CRL from its distribution point over HTTP. It is
// never invoked implicitly by the import engine; callers that want a fetch
// step call it explicitly before internal/ingest.ImportCRLToOCSPDB runs.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// Client downloads CRL bytes from a distribution point URL.
type Client struct {
	http *retryablehttp.Client
}

// NewClient returns a Client configured with a clean, non-proxy-leaking
// transport and a small bounded retry budget for transient network errors.
// It does not retry on 4xx responses; a distribution point that 404s is not
// going to start responding on the next attempt.
func NewClient(timeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = 3
	rc.Logger = nil
	return &Client{http: rc}
}

// FetchCRL retrieves the DER-encoded CRL at url. A non-2xx response or a
// transport error is returned as-is; the caller decides whether that is
// fatal to the import run.
func (c *Client) FetchCRL(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: building request for %s: %w", url, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch: %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading response body from %s: %w", url, err)
	}
	return body, nil
}
