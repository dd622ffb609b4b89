package agents

import (
	"sort"

	"oracle/internal/adapters/config"
	"oracle/internal/domain/report"
	"oracle/internal/providers"
	"oracle/pkg/errors"
)

// Registry maps report types to their validated agent graphs. Graphs are
// built once at startup; a bad graph fails construction, not a run.
type Registry struct {
	graphs map[report.Type]*Graph
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{graphs: make(map[report.Type]*Graph)}
}

// Register validates the agent set and binds it to the report type
func (r *Registry) Register(typ report.Type, agentList []Agent) error {
	graph, err := NewGraph(agentList)
	if err != nil {
		return errors.Wrapf(err, "graph for report type %s", typ)
	}
	r.graphs[typ] = graph
	return nil
}

// Graph returns the agent graph for a report type
func (r *Registry) Graph(typ report.Type) (*Graph, error) {
	graph, ok := r.graphs[typ]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownReportType, "%s", typ)
	}
	return graph, nil
}

// Types returns the registered report types, sorted
func (r *Registry) Types() []report.Type {
	out := make([]report.Type, 0, len(r.graphs))
	for typ := range r.graphs {
		out = append(out, typ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BuildRegistry wires the standard agent graphs for every report type.
//
// Premarket and postmarket run the full desk: macro, news, flow, market data
// and futures levels. The weekly review is positioning-centric and skips the
// intraday market agents.
func BuildRegistry(set *providers.Set, cfg config.PipelineConfig) (*Registry, error) {
	macro := NewMacroAgent(set.Fred, cfg)
	news := NewNewsAgent(set.Tavily, cfg)
	flow := NewFlowAgent(set.Cot, cfg)
	markets := NewMarketsAgent(set.AlphaVantage, cfg)
	futures := NewFuturesAgent(set.Futures, cfg)

	registry := NewRegistry()

	full := []Agent{macro, news, flow, markets, futures}
	if err := registry.Register(report.TypePremarket, full); err != nil {
		return nil, err
	}
	if err := registry.Register(report.TypePostmarket, full); err != nil {
		return nil, err
	}
	if err := registry.Register(report.TypeWeekly, []Agent{macro, flow}); err != nil {
		return nil, err
	}

	return registry, nil
}
