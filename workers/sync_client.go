// workers/sync_client.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"clan-wager-system/utils"
)

// syncClient pulls change feeds from the platform's sync services. Every feed
// takes a since cursor and authenticates with the shared service token.
type syncClient struct {
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func newSyncClient(baseURL, endpointPath, serviceToken string) *syncClient {
	return &syncClient{
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

// fetch GETs the feed changed since the cursor and decodes it into out.
func (c *syncClient) fetch(ctx context.Context, since time.Time, out interface{}) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid sync service URL %q: %w", c.baseURL, err)
	}
	endpoint := base.JoinPath(c.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.serviceToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call sync service: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sync service returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sync response: %w", err)
	}
	return nil
}
