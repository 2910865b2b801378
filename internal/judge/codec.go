package judge

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// graphEnvelope is the flat wire form of a graph: concrete node values,
// name-keyed edges, and the start-node name. Edges referencing nodes by
// name means restoration points every edge and the start reference at
// the restored instances, with no duplication of logically identical
// nodes.
type graphEnvelope struct {
	Nodes []Node
	Edges map[string]map[Verdict]string
	Start string
}

// Pack serializes the whole graph (all nodes with their concrete types
// and internal state, all edges, and the start-node reference) into an
// opaque binary blob. The encoding is gob, so every node implementation
// in the graph must have been passed to RegisterNodeType first. Blobs
// are a same-implementation round-trip format, not a cross-version wire
// contract.
func (g *Graph) Pack() ([]byte, error) {
	env := graphEnvelope{
		Nodes: g.Nodes(),
		Edges: g.edges,
		Start: g.start,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("pack graph: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack restores a graph previously produced by Pack. The restored
// graph is equal to the original under Equal, and restored nodes carry
// the same internal state their originals had.
func Unpack(data []byte) (*Graph, error) {
	var env graphEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("unpack graph: %w", err)
	}

	g := New()
	for _, n := range env.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("unpack graph: %w", err)
		}
	}
	for from, edges := range env.Edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("unpack graph: edge from unknown node %q", from)
		}
		for v, target := range edges {
			if _, ok := g.nodes[target]; !ok {
				return nil, fmt.Errorf("unpack graph: edge to unknown node %q", target)
			}
			g.edges[from][v] = target
		}
	}
	if env.Start != "" {
		if _, ok := g.nodes[env.Start]; !ok {
			return nil, fmt.Errorf("unpack graph: unknown start node %q", env.Start)
		}
		g.start = env.Start
	}
	return g, nil
}
