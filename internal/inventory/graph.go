package inventory

import (
	"fmt"
	"sort"
	"strings"
)

// Warning flags a suspicious shape in the declaration dependency graph.
type Warning struct {
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Names  []string `json:"names"`
}

// Cycles detects reactive declarations that reach themselves through
// their dependency edges, using Tarjan's SCC algorithm. Dependencies are
// resolved within the declaring class; a derived value reading its own
// name is the degenerate single-node case.
func (s *Store) Cycles() []Warning {
	graph := s.declGraph()
	sccs := tarjanSCC(graph)

	var warnings []Warning
	for _, scc := range sccs {
		if len(scc) == 1 && !hasEdge(graph, scc[0], scc[0]) {
			continue
		}
		sort.Strings(scc)

		cyclePath := strings.Join(scc, " -> ") + " -> " + scc[0]
		warnings = append(warnings, Warning{
			Title:  fmt.Sprintf("Dependency cycle (%d declarations)", len(scc)),
			Detail: fmt.Sprintf("These reactive declarations form a cycle: %s. A value that reaches itself never settles once any member updates.", cyclePath),
			Names:  scc,
		})
	}

	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Names[0] < warnings[j].Names[0]
	})
	return warnings
}

// declGraph builds class-qualified adjacency: an edge from each
// declaration to the dependencies naming sibling declarations in the
// same class. Dependencies on non-reactive members carry no edge.
func (s *Store) declGraph() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Both the member name and the generated name resolve to the node.
	nodes := make(map[string]map[string]string) // class -> name -> node key
	for _, d := range s.entries {
		m := nodes[d.Class]
		if m == nil {
			m = make(map[string]string)
			nodes[d.Class] = m
		}
		key := d.Class + "." + d.Member
		m[d.Member] = key
		m[d.Name] = key
	}

	graph := make(map[string][]string)
	for _, d := range s.entries {
		node := d.Class + "." + d.Member
		if _, ok := graph[node]; !ok {
			graph[node] = nil
		}
		for _, dep := range d.Deps {
			if target, ok := nodes[d.Class][dep]; ok {
				graph[node] = append(graph[node], target)
			}
		}
	}
	return graph
}

func hasEdge(graph map[string][]string, from, to string) bool {
	for _, t := range graph[from] {
		if t == to {
			return true
		}
	}
	return false
}

// tarjanSCC implements Tarjan's strongly connected components algorithm.
// Roots are visited in sorted order so the output is deterministic.
func tarjanSCC(graph map[string][]string) [][]string {
	var (
		index    int
		stack    []string
		onStack  = make(map[string]bool)
		indices  = make(map[string]int)
		lowlinks = make(map[string]int)
		sccs     [][]string
	)

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlinks[v] {
					lowlinks[v] = indices[w]
				}
			}
		}

		// Root of an SCC
		if lowlinks[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	roots := make([]string, 0, len(graph))
	for v := range graph {
		roots = append(roots, v)
	}
	sort.Strings(roots)
	for _, v := range roots {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	return sccs
}
