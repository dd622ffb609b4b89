package agents

import (
	"context"
	"fmt"
	"sort"

	"oracle/internal/adapters/config"
	"oracle/internal/providers"
	"oracle/pkg/errors"
)

// Agent names are stable identifiers: they key trace events, metrics labels
// and dependency declarations.
const (
	AgentMacroEconomist      = "macro_economist"
	AgentGeopoliticalAnalyst = "geopolitical_analyst"
	AgentFlowAnalyst         = "flow_analyst"
	AgentMarketData          = "market_data"
	AgentFuturesSpecialist   = "futures_specialist"
)

// MacroAgent reads the FRED economic snapshot and risk dashboard
type MacroAgent struct {
	fred *providers.FredClient
	spec Spec
}

// MacroFinding is the macro agent's structured output
type MacroFinding struct {
	Economic map[string]providers.Observation `json:"economic"`
	Risk     map[string]providers.Observation `json:"risk"`
}

// NewMacroAgent creates the macro economist agent
func NewMacroAgent(fred *providers.FredClient, cfg config.PipelineConfig) *MacroAgent {
	return &MacroAgent{
		fred: fred,
		spec: Spec{
			Name:    AgentMacroEconomist,
			Timeout: cfg.AgentTimeout,
			Retries: cfg.AgentRetries,
		},
	}
}

// Spec implements Agent
func (a *MacroAgent) Spec() Spec { return a.spec }

// Analyze implements Agent
func (a *MacroAgent) Analyze(ctx context.Context, deps map[string]Result) (*Finding, error) {
	finding := &Finding{}
	data := MacroFinding{}

	economic, econErr := a.fred.EconomicSnapshot(ctx)
	if econErr != nil && len(economic) == 0 {
		finding.Caveats = append(finding.Caveats, fmt.Sprintf("economic snapshot unavailable: %v", econErr))
	} else {
		data.Economic = economic
		finding.Caveats = append(finding.Caveats, seriesCaveats(economic)...)
	}

	risk, riskErr := a.fred.RiskIndicators(ctx)
	if riskErr != nil && len(risk) == 0 {
		finding.Caveats = append(finding.Caveats, fmt.Sprintf("risk indicators unavailable: %v", riskErr))
	} else {
		data.Risk = risk
		finding.Caveats = append(finding.Caveats, seriesCaveats(risk)...)
	}

	if len(data.Economic) == 0 && len(data.Risk) == 0 {
		if econErr != nil {
			return nil, econErr
		}
		return nil, errors.Wrapf(errors.ErrProviderUnavailable, "fred: no series returned")
	}

	finding.Data = data
	finding.Sources = observationSources(data.Economic, data.Risk)
	return finding, nil
}

func seriesCaveats(series map[string]providers.Observation) []string {
	var caveats []string
	ids := make([]string, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if obs := series[id]; obs.Err != "" {
			caveats = append(caveats, fmt.Sprintf("series %s unavailable: %s", id, obs.Err))
		}
	}
	return caveats
}

func observationSources(groups ...map[string]providers.Observation) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range groups {
		ids := make([]string, 0, len(group))
		for id := range group {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			obs := group[id]
			if obs.Source == "" || obs.Err != "" {
				continue
			}
			if _, dup := seen[obs.Source]; dup {
				continue
			}
			seen[obs.Source] = struct{}{}
			out = append(out, obs.Source)
		}
	}
	return out
}
