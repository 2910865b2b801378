package judge

import "sort"

// IntegrityReport holds the outcome of statically analyzing a graph.
// Defects are reported as data rather than errors: an inconsistent graph
// is a valid, inspectable state, typically mid-construction.
type IntegrityReport struct {
	// UnreachableNodes are nodes with no path from the start node.
	UnreachableNodes []string `json:"unreachable_nodes"`
	// CannotReachEnd are nodes from which no end node is reachable.
	CannotReachEnd []string `json:"cannot_reach_end"`
	// WrongConnections are non-end nodes whose outgoing labels cover
	// neither {OK, FAIL} nor {OK, INCONCLUSIVE}.
	WrongConnections []string `json:"wrong_connections"`
	// HasEndNodes is true if the graph contains at least one end node.
	HasEndNodes bool `json:"has_end_nodes"`
}

// NoErrors reports whether the graph is completely defect free.
func (r *IntegrityReport) NoErrors() bool {
	return len(r.UnreachableNodes) == 0 &&
		len(r.CannotReachEnd) == 0 &&
		len(r.WrongConnections) == 0 &&
		r.HasEndNodes
}

// CheckIntegrity analyzes the current graph snapshot and reports nodes
// that could strand a traversal. A start node must be configured first.
//
// Reachability is the reflexive transitive closure over edges with
// verdict labels ignored, computed Floyd–Warshall style. O(V³) is fine
// here: judge graphs have tens of nodes.
func (g *Graph) CheckIntegrity() (*IntegrityReport, error) {
	if g.start == "" {
		return nil, ErrStartNodeNotSet
	}

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	n := len(names)
	reach := make([][]bool, n)
	for i, name := range names {
		reach[i] = make([]bool, n)
		reach[i][i] = true
		for _, target := range g.edges[name] {
			reach[i][index[target]] = true
		}
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if !reach[i][k] {
				continue
			}
			for j := 0; j < n; j++ {
				reach[i][j] = reach[i][j] || reach[k][j]
			}
		}
	}

	report := &IntegrityReport{
		UnreachableNodes: []string{},
		CannotReachEnd:   []string{},
		WrongConnections: []string{},
	}

	ends := make([]int, 0, n)
	for i, name := range names {
		if IsEnd(g.nodes[name]) {
			ends = append(ends, i)
		}
	}
	report.HasEndNodes = len(ends) > 0

	startIdx := index[g.start]
	for i, name := range names {
		if !reach[startIdx][i] {
			report.UnreachableNodes = append(report.UnreachableNodes, name)
		}

		reachesEnd := false
		for _, e := range ends {
			if reach[i][e] {
				reachesEnd = true
				break
			}
		}
		if !reachesEnd {
			report.CannotReachEnd = append(report.CannotReachEnd, name)
		}

		if IsEnd(g.nodes[name]) {
			continue
		}
		labels := g.edges[name]
		_, hasOK := labels[VerdictOK]
		_, hasFail := labels[VerdictFail]
		_, hasInconclusive := labels[VerdictInconclusive]
		if !(hasOK && (hasFail || hasInconclusive)) {
			report.WrongConnections = append(report.WrongConnections, name)
		}
	}

	return report, nil
}
