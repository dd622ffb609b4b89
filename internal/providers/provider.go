package providers

import (
	"context"
	"time"

	"oracle/internal/adapters/config"
	"oracle/internal/adapters/redis"
)

// Provider is implemented by every external data source client. Agents depend
// on the concrete clients; this interface exists for registry bookkeeping and
// health reporting.
type Provider interface {
	Name() string
}

// Set bundles all configured data provider clients
type Set struct {
	Fred         *FredClient
	Tavily       *TavilyClient
	AlphaVantage *AlphaVantageClient
	Cot          *CotClient
	Futures      *FuturesClient
}

// NewSet constructs all provider clients from config. The redis client may be
// nil, in which case responses are not cached.
func NewSet(cfg config.ProvidersConfig, cache *redis.Client) *Set {
	fred := NewFredClient(cfg.FredAPIKey, cfg.FredRateLimit, newCache(cache, "fred", cfg.CacheTTLEconomic))
	tavily := NewTavilyClient(cfg.TavilyAPIKey, cfg.TavilyRateLimit, newCache(cache, "tavily", cfg.CacheTTLResearch))
	av := NewAlphaVantageClient(cfg.AlphaVantageAPIKey, cfg.AlphaVantageRateLimit, newCache(cache, "av", cfg.CacheTTLResearch))
	cot := NewCotClient(cfg.CotRateLimit, newCache(cache, "cot", cfg.CacheTTLCot))

	return &Set{
		Fred:         fred,
		Tavily:       tavily,
		AlphaVantage: av,
		Cot:          cot,
		Futures:      NewFuturesClient(av),
	}
}

// All returns the distinct providers in the set
func (s *Set) All() []Provider {
	return []Provider{s.Fred, s.Tavily, s.AlphaVantage, s.Cot, s.Futures}
}

// Count returns the number of distinct providers. The pipeline uses this as
// its default in-flight agent bound.
func (s *Set) Count() int {
	return len(s.All())
}

// cache is a nil-safe, namespaced TTL cache over redis
type cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func newCache(client *redis.Client, prefix string, ttl time.Duration) *cache {
	return &cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *cache) get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}
	err := c.client.Get(ctx, c.prefix+":"+key, dest)
	return err == nil
}

func (c *cache) set(ctx context.Context, key string, value interface{}) {
	if c == nil || c.client == nil {
		return
	}
	// Cache write failures are not worth failing a fetch over
	_ = c.client.Set(ctx, c.prefix+":"+key, value, c.ttl)
}
