package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

const userAgent = "oracle/1.0"

// restClient is the shared HTTP plumbing for provider clients: rate limiting,
// timeouts and mapping of transport failures onto the provider error taxonomy.
type restClient struct {
	http    *http.Client
	limiter *rate.Limiter
	name    string
	log     *logger.Logger
}

// newRestClient creates a rest client limited to requestsPerMinute
func newRestClient(name string, requestsPerMinute int) *restClient {
	rps := float64(requestsPerMinute) / 60.0

	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &restClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
		log:     logger.Get().With("provider", name),
	}
}

// getJSON performs a rate-limited GET and decodes the JSON response into dest
func (c *restClient) getJSON(ctx context.Context, url string, headers map[string]string, dest interface{}) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, headers, dest)
}

// postJSON performs a rate-limited POST with a JSON body
func (c *restClient) postJSON(ctx context.Context, url string, body interface{}, headers map[string]string, dest interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "%s: encode request: %v", c.name, err)
	}
	return c.doJSON(ctx, http.MethodPost, url, data, headers, dest)
}

func (c *restClient) doJSON(ctx context.Context, method, url string, body []byte, headers map[string]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter %s", c.name)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "%s: %v", c.name, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrProviderUnavailable, "%s: %v", c.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Wrapf(errors.ErrProviderRateLimited, "%s: status %d", c.name, resp.StatusCode)
	case resp.StatusCode >= 500:
		return errors.Wrapf(errors.ErrProviderUnavailable, "%s: status %d", c.name, resp.StatusCode)
	case resp.StatusCode >= 400:
		return errors.Wrapf(errors.ErrProviderInvalidResponse, "%s: status %d", c.name, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(errors.ErrProviderUnavailable, "%s: read body: %v", c.name, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return errors.Wrapf(errors.ErrProviderInvalidResponse, "%s: decode: %v", c.name, err)
	}

	return nil
}
