package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"oracle/pkg/errors"
)

const fredBaseURL = "https://api.stlouisfed.org/fred"

// Economic snapshot series
var fredSnapshotSeries = []string{"GDP", "CPIAUCSL", "UNRATE", "FEDFUNDS"}

// Risk dashboard series
var fredRiskSeries = []string{"VIXCLS", "BAMLC0A0CM", "BAMLH0A0HYM2", "T10Y2Y", "T10Y3M"}

// FredClient fetches economic series from the St. Louis Fed FRED API
type FredClient struct {
	rest   *restClient
	apiKey string
	cache  *cache
}

// Observation is the latest reading of an economic series with its prior value
type Observation struct {
	SeriesID   string    `json:"series"`
	Value      *float64  `json:"value"`
	PriorValue *float64  `json:"prior_value,omitempty"`
	Change     *float64  `json:"change,omitempty"`
	AsOf       string    `json:"as_of,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
	Source     string    `json:"source"`
	Err        string    `json:"error,omitempty"`
}

// NewFredClient creates a FRED API client
func NewFredClient(apiKey string, requestsPerMinute int, cache *cache) *FredClient {
	return &FredClient{
		rest:   newRestClient("fred", requestsPerMinute),
		apiKey: apiKey,
		cache:  cache,
	}
}

// Name implements Provider
func (c *FredClient) Name() string { return "fred" }

type fredObservationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Series fetches the latest observations for a series, newest first
func (c *FredClient) Series(ctx context.Context, seriesID string, limit int) (*Observation, error) {
	if c.apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "fred: missing API key")
	}

	cacheKey := fmt.Sprintf("series:%s", seriesID)
	var cached Observation
	if c.cache.get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	params.Set("sort_order", "desc")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("observation_start", time.Now().AddDate(-1, 0, 0).Format("2006-01-02"))
	params.Set("observation_end", time.Now().Format("2006-01-02"))

	var resp fredObservationsResponse
	reqURL := fmt.Sprintf("%s/series/observations?%s", fredBaseURL, params.Encode())
	if err := c.rest.getJSON(ctx, reqURL, nil, &resp); err != nil {
		return nil, err
	}

	obs := &Observation{
		SeriesID:  seriesID,
		FetchedAt: time.Now().UTC(),
		Source:    fmt.Sprintf("FRED (series: %s)", seriesID),
	}

	// FRED reports missing data points as "."
	values := make([]float64, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			continue
		}
		if obs.AsOf == "" {
			obs.AsOf = o.Date
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return nil, errors.Wrapf(errors.ErrProviderInvalidResponse, "fred: no observations for %s", seriesID)
	}

	obs.Value = &values[0]
	if len(values) > 1 {
		obs.PriorValue = &values[1]
		change := values[0] - values[1]
		obs.Change = &change
	}

	c.cache.set(ctx, cacheKey, obs)
	return obs, nil
}

// EconomicSnapshot fetches the headline macro series. A failed series is
// reported inline rather than failing the snapshot.
func (c *FredClient) EconomicSnapshot(ctx context.Context) (map[string]Observation, error) {
	return c.fetchSeries(ctx, fredSnapshotSeries)
}

// RiskIndicators fetches the risk dashboard series (vol, credit, curve)
func (c *FredClient) RiskIndicators(ctx context.Context) (map[string]Observation, error) {
	return c.fetchSeries(ctx, fredRiskSeries)
}

func (c *FredClient) fetchSeries(ctx context.Context, ids []string) (map[string]Observation, error) {
	out := make(map[string]Observation, len(ids))
	var lastErr error

	for _, id := range ids {
		obs, err := c.Series(ctx, id, 10)
		if err != nil {
			lastErr = err
			out[id] = Observation{SeriesID: id, Err: err.Error(), FetchedAt: time.Now().UTC()}
			continue
		}
		out[id] = *obs
	}

	// Only fail outright when nothing came back
	if len(out) > 0 {
		for _, o := range out {
			if o.Err == "" {
				return out, nil
			}
		}
	}
	return out, lastErr
}
