package agents

import (
	"context"
	"fmt"
	"sort"

	"oracle/internal/adapters/config"
	"oracle/internal/providers"
)

// MarketsAgent fetches the cross-asset market snapshot
type MarketsAgent struct {
	av   *providers.AlphaVantageClient
	spec Spec
}

// MarketsFinding is the cross-asset quote basket
type MarketsFinding struct {
	Quotes map[string]providers.Quote `json:"quotes"`
}

// NewMarketsAgent creates the market data agent
func NewMarketsAgent(av *providers.AlphaVantageClient, cfg config.PipelineConfig) *MarketsAgent {
	return &MarketsAgent{
		av: av,
		spec: Spec{
			Name:    AgentMarketData,
			Timeout: cfg.AgentTimeout,
			Retries: cfg.AgentRetries,
		},
	}
}

// Spec implements Agent
func (a *MarketsAgent) Spec() Spec { return a.spec }

// Analyze implements Agent
func (a *MarketsAgent) Analyze(ctx context.Context, deps map[string]Result) (*Finding, error) {
	quotes, err := a.av.MarketOverview(ctx)
	if err != nil {
		return nil, err
	}

	finding := &Finding{Data: MarketsFinding{Quotes: quotes}}

	symbols := make([]string, 0, len(quotes))
	for symbol := range quotes {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		finding.Sources = appendUnique(finding.Sources, quotes[symbol].Source)
	}

	if missing := providers.OverviewSymbolCount() - len(quotes); missing > 0 {
		finding.Caveats = append(finding.Caveats,
			fmt.Sprintf("%d of %d overview symbols unavailable", missing, providers.OverviewSymbolCount()))
	}

	return finding, nil
}
