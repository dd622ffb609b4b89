package agents

import (
	"sort"

	"oracle/pkg/errors"
)

// Graph is a validated agent dependency DAG for one report type.
// Construction fails on unknown or cyclic dependencies, so a bad
// configuration is caught at startup rather than at run time.
type Graph struct {
	agents map[string]Agent
	order  []string // topological order, for deterministic iteration
}

// NewGraph validates the agents' dependency relation and returns a Graph
func NewGraph(agentList []Agent) (*Graph, error) {
	byName := make(map[string]Agent, len(agentList))
	for _, a := range agentList {
		spec := a.Spec()
		if spec.Name == "" {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "agent with empty name")
		}
		if _, dup := byName[spec.Name]; dup {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "duplicate agent %q", spec.Name)
		}
		byName[spec.Name] = a
	}

	for _, a := range byName {
		for _, dep := range a.Spec().DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, errors.Wrapf(errors.ErrUnknownDependency, "agent %q depends on %q", a.Spec().Name, dep)
			}
		}
	}

	order, err := topoSort(byName)
	if err != nil {
		return nil, err
	}

	return &Graph{agents: byName, order: order}, nil
}

// topoSort runs Kahn's algorithm; leftover nodes mean a cycle
func topoSort(byName map[string]Agent) ([]string, error) {
	indegree := make(map[string]int, len(byName))
	dependents := make(map[string][]string, len(byName))

	for name, a := range byName {
		indegree[name] += 0
		for _, dep := range a.Spec().DependsOn {
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(byName))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		next := dependents[name]
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(byName) {
		remaining := make([]string, 0)
		seen := make(map[string]bool, len(order))
		for _, n := range order {
			seen[n] = true
		}
		for name := range byName {
			if !seen[name] {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		return nil, errors.Wrapf(errors.ErrCyclicDependency, "agents %v", remaining)
	}

	return order, nil
}

// Agents returns the agents in topological order
func (g *Graph) Agents() []Agent {
	out := make([]Agent, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.agents[name])
	}
	return out
}

// Agent returns the named agent
func (g *Graph) Agent(name string) Agent {
	return g.agents[name]
}

// Size returns the number of agents in the graph
func (g *Graph) Size() int {
	return len(g.agents)
}

// Ready returns the names of agents that have not finished and whose
// dependencies all have terminal results. This is the layering rule: an agent
// waits only on its direct dependencies, not on a whole prior layer.
func (g *Graph) Ready(finished map[string]Result, inFlight map[string]bool) []string {
	var ready []string
	for _, name := range g.order {
		if inFlight[name] {
			continue
		}
		if _, done := finished[name]; done {
			continue
		}

		ok := true
		for _, dep := range g.agents[name].Spec().DependsOn {
			if res, done := finished[dep]; !done || !res.Terminal() {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, name)
		}
	}
	return ready
}

// Layers returns the topological layering of the graph: layer 0 has no
// dependencies, each later layer depends only on earlier ones.
func (g *Graph) Layers() [][]string {
	depth := make(map[string]int, len(g.order))
	maxDepth := 0
	for _, name := range g.order {
		d := 0
		for _, dep := range g.agents[name].Spec().DependsOn {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[name] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	layers := make([][]string, maxDepth+1)
	for _, name := range g.order {
		layers[depth[name]] = append(layers[depth[name]], name)
	}
	return layers
}
