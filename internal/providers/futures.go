package providers

import (
	"context"
	"time"

	talib "github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"oracle/pkg/errors"
)

// Futures contracts tracked, with the ETF proxy used for the price series
var futuresContracts = []struct {
	Contract string
	Label    string
	Proxy    string
}{
	{Contract: "ES", Label: "S&P 500", Proxy: "SPY"},
	{Contract: "ZN", Label: "10Y Note", Proxy: "IEF"},
	{Contract: "GC", Label: "Gold", Proxy: "GLD"},
	{Contract: "CL", Label: "WTI Crude", Proxy: "USO"},
}

const indicatorPeriod = 14

// FuturesContractCount returns how many contracts the overview tracks
func FuturesContractCount() int {
	return len(futuresContracts)
}

// FuturesClient derives futures trading levels from daily price series.
// It reuses the Alpha Vantage client for the underlying data.
type FuturesClient struct {
	av *AlphaVantageClient
}

// ContractLevels carries computed trading levels for one contract
type ContractLevels struct {
	Contract   string          `json:"contract"`
	Label      string          `json:"label"`
	Current    decimal.Decimal `json:"current"`
	Support    decimal.Decimal `json:"support"`
	Resistance decimal.Decimal `json:"resistance"`
	RSI        float64         `json:"rsi"`
	ATR        float64         `json:"atr"`
	Sentiment  string          `json:"sentiment"`
	FetchedAt  time.Time       `json:"fetched_at"`
	Source     string          `json:"source"`
}

// NewFuturesClient creates a futures levels client
func NewFuturesClient(av *AlphaVantageClient) *FuturesClient {
	return &FuturesClient{av: av}
}

// Name implements Provider
func (c *FuturesClient) Name() string { return "futures" }

// Overview computes levels for every tracked contract. Individual contract
// failures are tolerated as long as one contract succeeds.
func (c *FuturesClient) Overview(ctx context.Context) (map[string]ContractLevels, error) {
	out := make(map[string]ContractLevels, len(futuresContracts))
	var lastErr error

	for _, fc := range futuresContracts {
		levels, err := c.contractLevels(ctx, fc.Contract, fc.Label, fc.Proxy)
		if err != nil {
			lastErr = err
			continue
		}
		out[fc.Contract] = *levels
	}

	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

func (c *FuturesClient) contractLevels(ctx context.Context, contract, label, proxy string) (*ContractLevels, error) {
	candles, err := c.av.DailySeries(ctx, proxy, 60)
	if err != nil {
		return nil, err
	}
	if len(candles) < indicatorPeriod+1 {
		return nil, errors.Wrapf(errors.ErrProviderInvalidResponse, "futures: %d candles for %s, need %d", len(candles), proxy, indicatorPeriod+1)
	}

	// talib wants oldest-first series
	n := len(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, candle := range candles {
		j := n - 1 - i
		highs[j], _ = candle.High.Float64()
		lows[j], _ = candle.Low.Float64()
		closes[j], _ = candle.Close.Float64()
	}

	rsi := talib.Rsi(closes, indicatorPeriod)
	atr := talib.Atr(highs, lows, closes, indicatorPeriod)
	minLow := talib.Min(lows, indicatorPeriod)
	maxHigh := talib.Max(highs, indicatorPeriod)

	last := n - 1
	levels := &ContractLevels{
		Contract:   contract,
		Label:      label,
		Current:    candles[0].Close,
		Support:    decimal.NewFromFloat(minLow[last]),
		Resistance: decimal.NewFromFloat(maxHigh[last]),
		RSI:        rsi[last],
		ATR:        atr[last],
		Sentiment:  futuresSentiment(rsi[last]),
		FetchedAt:  time.Now().UTC(),
		Source:     "Alpha Vantage proxy " + proxy,
	}

	return levels, nil
}

func futuresSentiment(rsi float64) string {
	switch {
	case rsi >= 70:
		return "OVERBOUGHT"
	case rsi >= 55:
		return "BULLISH"
	case rsi <= 30:
		return "OVERSOLD"
	case rsi <= 45:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}
