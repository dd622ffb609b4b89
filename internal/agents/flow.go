package agents

import (
	"context"
	"fmt"

	"oracle/internal/adapters/config"
	"oracle/internal/providers"
)

// FlowAgent analyzes CFTC speculative positioning
type FlowAgent struct {
	cot  *providers.CotClient
	spec Spec
}

// FlowFinding carries the per-asset positioning summary and the crowded
// extremes worth calling out
type FlowFinding struct {
	Positioning map[string]providers.AssetPositioning `json:"positioning"`
	Crowded     []providers.AssetPositioning          `json:"crowded,omitempty"`
}

// NewFlowAgent creates the flow analyst agent
func NewFlowAgent(cot *providers.CotClient, cfg config.PipelineConfig) *FlowAgent {
	return &FlowAgent{
		cot: cot,
		spec: Spec{
			Name:    AgentFlowAnalyst,
			Timeout: cfg.AgentTimeout,
			Retries: cfg.AgentRetries,
		},
	}
}

// Spec implements Agent
func (a *FlowAgent) Spec() Spec { return a.spec }

// Analyze implements Agent
func (a *FlowAgent) Analyze(ctx context.Context, deps map[string]Result) (*Finding, error) {
	positioning, err := a.cot.PositioningSummary(ctx)
	if err != nil {
		return nil, err
	}

	data := FlowFinding{Positioning: positioning}
	for _, pos := range positioning {
		if pos.Signal == "CROWDED LONG" || pos.Signal == "CROWDED SHORT" {
			data.Crowded = append(data.Crowded, pos)
		}
	}

	finding := &Finding{Data: data}
	if missing := providers.CotMarketCount() - len(positioning); missing > 0 {
		finding.Caveats = append(finding.Caveats,
			fmt.Sprintf("%d of %d tracked markets missing from positioning data", missing, providers.CotMarketCount()))
	}
	for _, pos := range positioning {
		if pos.Source != "" {
			finding.Sources = appendUnique(finding.Sources, pos.Source)
		}
	}

	return finding, nil
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
