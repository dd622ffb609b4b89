package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"oracle/pkg/errors"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// Symbols covered by the market overview
var overviewSymbols = []string{"SPY", "TLT", "GLD", "USO", "UUP", "FXE"}

// OverviewSymbolCount returns how many symbols the market overview covers
func OverviewSymbolCount() int {
	return len(overviewSymbols)
}

// AlphaVantageClient fetches quotes and daily price series
type AlphaVantageClient struct {
	rest   *restClient
	apiKey string
	cache  *cache
}

// Quote is a delayed market quote
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent string          `json:"change_percent"`
	Volume        int64           `json:"volume"`
	TradingDay    string          `json:"trading_day"`
	FetchedAt     time.Time       `json:"fetched_at"`
	Source        string          `json:"source"`
}

// Candle is one daily OHLC bar
type Candle struct {
	Date  string          `json:"date"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// NewAlphaVantageClient creates an Alpha Vantage client
func NewAlphaVantageClient(apiKey string, requestsPerMinute int, cache *cache) *AlphaVantageClient {
	return &AlphaVantageClient{
		rest:   newRestClient("alpha_vantage", requestsPerMinute),
		apiKey: apiKey,
		cache:  cache,
	}
}

// Name implements Provider
func (c *AlphaVantageClient) Name() string { return "alpha_vantage" }

type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
}

// GlobalQuote fetches the latest quote for a symbol
func (c *AlphaVantageClient) GlobalQuote(ctx context.Context, symbol string) (*Quote, error) {
	if c.apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "alpha_vantage: missing API key")
	}

	cacheKey := "quote:" + symbol
	var cached Quote
	if c.cache.get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	var resp globalQuoteResponse
	if err := c.rest.getJSON(ctx, alphaVantageBaseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	// Alpha Vantage reports quota exhaustion as a 200 with a Note
	if resp.Note != "" {
		return nil, errors.Wrapf(errors.ErrProviderRateLimited, "alpha_vantage: %s", resp.Note)
	}
	if len(resp.GlobalQuote) == 0 {
		return nil, errors.Wrapf(errors.ErrProviderInvalidResponse, "alpha_vantage: empty quote for %s", symbol)
	}

	quote, err := parseGlobalQuote(symbol, resp.GlobalQuote)
	if err != nil {
		return nil, err
	}

	c.cache.set(ctx, cacheKey, quote)
	return quote, nil
}

func parseGlobalQuote(symbol string, raw map[string]string) (*Quote, error) {
	price, err := decimal.NewFromString(raw["05. price"])
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderInvalidResponse, "alpha_vantage: bad price for %s", symbol)
	}
	change, _ := decimal.NewFromString(raw["09. change"])

	var volume int64
	fmt.Sscanf(raw["06. volume"], "%d", &volume)

	return &Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: raw["10. change percent"],
		Volume:        volume,
		TradingDay:    raw["07. latest trading day"],
		FetchedAt:     time.Now().UTC(),
		Source:        fmt.Sprintf("Alpha Vantage (%s)", symbol),
	}, nil
}

// MarketOverview fetches quotes for the standard macro symbol basket.
// Individual symbol failures are tolerated as long as one symbol succeeds.
func (c *AlphaVantageClient) MarketOverview(ctx context.Context) (map[string]Quote, error) {
	out := make(map[string]Quote, len(overviewSymbols))
	var lastErr error

	for _, symbol := range overviewSymbols {
		q, err := c.GlobalQuote(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		out[symbol] = *q
	}

	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

type dailySeriesResponse struct {
	Series map[string]map[string]string `json:"Time Series (Daily)"`
	Note   string                       `json:"Note"`
}

// DailySeries fetches up to limit recent daily candles for a symbol, newest first
func (c *AlphaVantageClient) DailySeries(ctx context.Context, symbol string, limit int) ([]Candle, error) {
	if c.apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "alpha_vantage: missing API key")
	}

	cacheKey := "daily:" + symbol
	var cached []Candle
	if c.cache.get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", "compact")
	params.Set("apikey", c.apiKey)

	var resp dailySeriesResponse
	if err := c.rest.getJSON(ctx, alphaVantageBaseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Note != "" {
		return nil, errors.Wrapf(errors.ErrProviderRateLimited, "alpha_vantage: %s", resp.Note)
	}
	if len(resp.Series) == 0 {
		return nil, errors.Wrapf(errors.ErrProviderInvalidResponse, "alpha_vantage: empty series for %s", symbol)
	}

	candles := make([]Candle, 0, len(resp.Series))
	for date, bar := range resp.Series {
		open, err1 := decimal.NewFromString(bar["1. open"])
		high, err2 := decimal.NewFromString(bar["2. high"])
		low, err3 := decimal.NewFromString(bar["3. low"])
		closeP, err4 := decimal.NewFromString(bar["4. close"])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		candles = append(candles, Candle{Date: date, Open: open, High: high, Low: low, Close: closeP})
	}

	sortCandlesDesc(candles)
	if limit > 0 && len(candles) > limit {
		candles = candles[:limit]
	}

	c.cache.set(ctx, cacheKey, candles)
	return candles, nil
}

func sortCandlesDesc(candles []Candle) {
	// ISO dates sort lexicographically
	for i := 1; i < len(candles); i++ {
		for j := i; j > 0 && candles[j].Date > candles[j-1].Date; j-- {
			candles[j], candles[j-1] = candles[j-1], candles[j]
		}
	}
}
