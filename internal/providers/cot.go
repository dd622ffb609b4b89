package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const cotBaseURL = "https://publicreporting.cftc.gov/resource/6dca-aqww.json"

// Markets tracked in the positioning summary, keyed by display name
var cotMarkets = map[string]string{
	"EUR":     "EURO FX - CHICAGO MERCANTILE EXCHANGE",
	"JPY":     "JAPANESE YEN - CHICAGO MERCANTILE EXCHANGE",
	"GBP":     "BRITISH POUND - CHICAGO MERCANTILE EXCHANGE",
	"Gold":    "GOLD - COMMODITY EXCHANGE INC.",
	"Crude":   "WTI-PHYSICAL - NEW YORK MERCANTILE EXCHANGE",
	"S&P 500": "E-MINI S&P 500 - CHICAGO MERCANTILE EXCHANGE",
	"10Y":     "UST 10Y NOTE - CHICAGO BOARD OF TRADE",
}

// CotMarketCount returns how many markets the positioning summary tracks
func CotMarketCount() int {
	return len(cotMarkets)
}

// CotClient fetches CFTC Commitments of Traders positioning data
type CotClient struct {
	rest  *restClient
	cache *cache
}

// AssetPositioning summarizes speculative positioning for one market
type AssetPositioning struct {
	Asset      string    `json:"asset"`
	NetPct     float64   `json:"net_pct"` // net spec position as % of open interest
	WoWChange  float64   `json:"wow_change"`
	Signal     string    `json:"signal"`
	ReportDate string    `json:"report_date"`
	FetchedAt  time.Time `json:"fetched_at"`
	Source     string    `json:"source"`
}

// NewCotClient creates a CFTC COT client. The public endpoint needs no key.
func NewCotClient(requestsPerMinute int, cache *cache) *CotClient {
	return &CotClient{
		rest:  newRestClient("cot", requestsPerMinute),
		cache: cache,
	}
}

// Name implements Provider
func (c *CotClient) Name() string { return "cot" }

type cotRow struct {
	ReportDate   string `json:"report_date_as_yyyy_mm_dd"`
	MarketName   string `json:"market_and_exchange_names"`
	OpenInterest string `json:"open_interest_all"`
	NoncommLong  string `json:"noncomm_positions_long_all"`
	NoncommShort string `json:"noncomm_positions_short_all"`
}

// PositioningSummary fetches the two most recent weekly reports per tracked
// market and derives net spec positioning with week-over-week change.
func (c *CotClient) PositioningSummary(ctx context.Context) (map[string]AssetPositioning, error) {
	cacheKey := "positioning"
	var cached map[string]AssetPositioning
	if c.cache.get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	out := make(map[string]AssetPositioning, len(cotMarkets))
	var lastErr error

	for asset, market := range cotMarkets {
		pos, err := c.fetchMarket(ctx, asset, market)
		if err != nil {
			lastErr = err
			continue
		}
		out[asset] = *pos
	}

	if len(out) == 0 {
		return nil, lastErr
	}

	c.cache.set(ctx, cacheKey, out)
	return out, nil
}

func (c *CotClient) fetchMarket(ctx context.Context, asset, market string) (*AssetPositioning, error) {
	params := url.Values{}
	params.Set("market_and_exchange_names", market)
	params.Set("$order", "report_date_as_yyyy_mm_dd DESC")
	params.Set("$limit", "2")

	var rows []cotRow
	if err := c.rest.getJSON(ctx, cotBaseURL+"?"+params.Encode(), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("cot: no rows for %s", market)
	}

	current := netPct(rows[0])
	pos := &AssetPositioning{
		Asset:      asset,
		NetPct:     current,
		ReportDate: rows[0].ReportDate,
		Signal:     positioningSignal(current),
		FetchedAt:  time.Now().UTC(),
		Source:     fmt.Sprintf("CFTC COT (%s)", market),
	}
	if len(rows) > 1 {
		pos.WoWChange = current - netPct(rows[1])
	}

	return pos, nil
}

func netPct(row cotRow) float64 {
	oi, _ := strconv.ParseFloat(row.OpenInterest, 64)
	long, _ := strconv.ParseFloat(row.NoncommLong, 64)
	short, _ := strconv.ParseFloat(row.NoncommShort, 64)
	if oi == 0 {
		return 0
	}
	return (long - short) / oi * 100
}

// positioningSignal classifies net positioning extremes
func positioningSignal(netPct float64) string {
	switch {
	case netPct > 30:
		return "CROWDED LONG"
	case netPct > 15:
		return "ELEVATED LONG"
	case netPct < -30:
		return "CROWDED SHORT"
	case netPct < -15:
		return "ELEVATED SHORT"
	default:
		return "NEUTRAL"
	}
}

// CrowdedTrades returns the markets at crowded positioning extremes
func (c *CotClient) CrowdedTrades(ctx context.Context) ([]AssetPositioning, error) {
	summary, err := c.PositioningSummary(ctx)
	if err != nil {
		return nil, err
	}

	var crowded []AssetPositioning
	for _, pos := range summary {
		if pos.Signal == "CROWDED LONG" || pos.Signal == "CROWDED SHORT" {
			crowded = append(crowded, pos)
		}
	}
	return crowded, nil
}
