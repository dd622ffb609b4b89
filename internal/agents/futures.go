package agents

import (
	"context"
	"fmt"
	"sort"

	"oracle/internal/adapters/config"
	"oracle/internal/providers"
)

// FuturesAgent computes trading levels for the tracked futures contracts.
// It depends on the market data agent: a dead cross-asset snapshot usually
// means the same upstream is down, and the finding is caveated accordingly.
type FuturesAgent struct {
	futures *providers.FuturesClient
	spec    Spec
}

// FuturesFinding is the per-contract level map
type FuturesFinding struct {
	Contracts map[string]providers.ContractLevels `json:"contracts"`
}

// NewFuturesAgent creates the futures specialist agent
func NewFuturesAgent(futures *providers.FuturesClient, cfg config.PipelineConfig) *FuturesAgent {
	return &FuturesAgent{
		futures: futures,
		spec: Spec{
			Name:      AgentFuturesSpecialist,
			DependsOn: []string{AgentMarketData},
			Timeout:   cfg.AgentTimeout,
			Retries:   cfg.AgentRetries,
		},
	}
}

// Spec implements Agent
func (a *FuturesAgent) Spec() Spec { return a.spec }

// Analyze implements Agent
func (a *FuturesAgent) Analyze(ctx context.Context, deps map[string]Result) (*Finding, error) {
	contracts, err := a.futures.Overview(ctx)
	if err != nil {
		return nil, err
	}

	finding := &Finding{Data: FuturesFinding{Contracts: contracts}}

	if dep, ok := deps[AgentMarketData]; ok && dep.Failed() {
		finding.Caveats = append(finding.Caveats, "cross-asset snapshot unavailable, levels computed without quote cross-check")
	}

	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		finding.Sources = appendUnique(finding.Sources, contracts[name].Source)
	}

	if missing := providers.FuturesContractCount() - len(contracts); missing > 0 {
		finding.Caveats = append(finding.Caveats,
			fmt.Sprintf("%d of %d contracts missing levels", missing, providers.FuturesContractCount()))
	}

	return finding, nil
}
