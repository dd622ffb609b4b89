package agents

import (
	"context"
	"fmt"
	"sort"

	"oracle/internal/adapters/config"
	"oracle/internal/providers"
)

// NewsAgent scans recent macro and geopolitical headlines
type NewsAgent struct {
	tavily *providers.TavilyClient
	spec   Spec
}

// NewsFinding groups search hits by topic
type NewsFinding struct {
	Topics map[string][]providers.SearchResult `json:"topics"`
}

// NewNewsAgent creates the geopolitical analyst agent
func NewNewsAgent(tavily *providers.TavilyClient, cfg config.PipelineConfig) *NewsAgent {
	return &NewsAgent{
		tavily: tavily,
		spec: Spec{
			Name:    AgentGeopoliticalAnalyst,
			Timeout: cfg.AgentTimeout,
			Retries: cfg.AgentRetries,
		},
	}
}

// Spec implements Agent
func (a *NewsAgent) Spec() Spec { return a.spec }

// Analyze implements Agent
func (a *NewsAgent) Analyze(ctx context.Context, deps map[string]Result) (*Finding, error) {
	topics, err := a.tavily.SearchMacroEvents(ctx)
	if err != nil {
		return nil, err
	}

	finding := &Finding{Data: NewsFinding{Topics: topics}}

	names := make([]string, 0, len(topics))
	for topic := range topics {
		names = append(names, topic)
	}
	sort.Strings(names)
	for _, topic := range names {
		for _, hit := range topics[topic] {
			if hit.URL != "" {
				finding.Sources = append(finding.Sources, hit.URL)
			}
		}
	}

	if missing := providers.MacroEventTopicCount() - len(topics); missing > 0 {
		finding.Caveats = append(finding.Caveats,
			fmt.Sprintf("%d of %d news topics unavailable", missing, providers.MacroEventTopicCount()))
	}

	return finding, nil
}
