package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"oracle/pkg/errors"
)

const tavilyBaseURL = "https://api.tavily.com"

// Topics searched for the geopolitical scan
var macroEventTopics = []string{
	"central bank policy decisions this week",
	"geopolitical risk markets",
	"oil supply disruption",
	"US fiscal policy market impact",
}

// TavilyClient performs news search via the Tavily API
type TavilyClient struct {
	rest   *restClient
	apiKey string
	cache  *cache
}

// SearchResult is one news search hit
type SearchResult struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	URL       string    `json:"source"`
	Score     float64   `json:"score,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewTavilyClient creates a Tavily search client
func NewTavilyClient(apiKey string, requestsPerMinute int, cache *cache) *TavilyClient {
	return &TavilyClient{
		rest:   newRestClient("tavily", requestsPerMinute),
		apiKey: apiKey,
		cache:  cache,
	}
}

// Name implements Provider
func (c *TavilyClient) Name() string { return "tavily" }

type tavilySearchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		Content string  `json:"content"`
		URL     string  `json:"url"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs a single search query
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "tavily: missing API key")
	}

	sum := sha256.Sum256([]byte(query))
	cacheKey := "search:" + hex.EncodeToString(sum[:8])
	var cached []SearchResult
	if c.cache.get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	req := tavilySearchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "advanced",
		MaxResults:    maxResults,
		IncludeAnswer: true,
	}

	var resp tavilySearchResponse
	if err := c.rest.postJSON(ctx, tavilyBaseURL+"/search", req, nil, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, SearchResult{
			Title:     r.Title,
			Content:   truncate(r.Content, 400),
			URL:       r.URL,
			Score:     r.Score,
			FetchedAt: now,
		})
	}

	c.cache.set(ctx, cacheKey, results)
	return results, nil
}

// SearchMacroEvents runs the standard macro topic scan. Individual topic
// failures are tolerated as long as at least one topic succeeds.
func (c *TavilyClient) SearchMacroEvents(ctx context.Context) (map[string][]SearchResult, error) {
	out := make(map[string][]SearchResult, len(macroEventTopics))
	var lastErr error

	for _, topic := range macroEventTopics {
		results, err := c.Search(ctx, topic, 5)
		if err != nil {
			lastErr = err
			continue
		}
		out[topic] = results
	}

	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

// MacroEventTopicCount returns how many topics the standard scan covers
func MacroEventTopicCount() int {
	return len(macroEventTopics)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
