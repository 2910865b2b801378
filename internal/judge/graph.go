// Package judge implements the decision graph that routes a submission
// through judge nodes until a final verdict is reached.
//
// A Graph is a plain in-memory structure with no internal locking. It is
// not safe for concurrent mutation or traversal from multiple goroutines;
// callers that share a graph must serialize access themselves (the usual
// pattern is one graph instance per traversal).
package judge

import (
	"fmt"
	"sort"
)

// Graph is a directed, verdict-labeled decision graph of judge nodes
// plus a designated start node.
//
// Nodes are kept in a name-keyed registry and edges reference targets by
// name, so the structure holds no cyclic object references even when the
// graph itself is cyclic. Each node has at most one outgoing edge per
// verdict; adding a second edge with the same label overwrites the first.
type Graph struct {
	nodes map[string]Node
	edges map[string]map[Verdict]string
	start string
}

// New creates an empty graph with no start node.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		edges: make(map[string]map[Verdict]string),
	}
}

// FromAdjacency builds a graph from an explicit adjacency structure and
// a start node. All nodes are inserted before any edge, because edge
// insertion validates that the target is already a member.
func FromAdjacency(adj map[Node]map[Verdict]Node, start Node) (*Graph, error) {
	g := New()
	for n := range adj {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for from, edges := range adj {
		for v, to := range edges {
			if err := g.AddConnection(from, to, v); err != nil {
				return nil, err
			}
		}
	}
	if err := g.SetStartNode(start); err != nil {
		return nil, err
	}
	return g, nil
}

// Nodes returns all member nodes, sorted by name.
func (g *Graph) Nodes() []Node {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Node, len(names))
	for i, name := range names {
		out[i] = g.nodes[name]
	}
	return out
}

// NodeByName looks up a member node by name.
func (g *Graph) NodeByName(name string) (Node, error) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, &UnknownNodeError{Name: name}
	}
	return n, nil
}

// AddNode inserts a node with an empty edge set. The node name must be
// non-empty and unique within the graph.
func (g *Graph) AddNode(n Node) error {
	name := n.Name()
	if name == "" {
		return fmt.Errorf("node name must not be empty")
	}
	if _, ok := g.nodes[name]; ok {
		return &DuplicateNodeError{Name: name}
	}
	g.nodes[name] = n
	g.edges[name] = make(map[Verdict]string)
	return nil
}

// AddConnection creates a directed edge from one node to another,
// labeled with a verdict. An existing edge with the same label is
// overwritten. End nodes never get outgoing edges, regardless of whether
// the target exists.
func (g *Graph) AddConnection(from, to Node, with Verdict) error {
	if IsEnd(from) {
		return &EndNodeError{Name: from.Name(), Op: "connect from"}
	}
	if _, ok := g.nodes[from.Name()]; !ok {
		return &UnknownNodeError{Name: from.Name()}
	}
	if _, ok := g.nodes[to.Name()]; !ok {
		return &UnknownNodeError{Name: to.Name()}
	}
	g.edges[from.Name()][with] = to.Name()
	return nil
}

// RemoveNode removes a node together with every edge that leaves or
// enters it.
func (g *Graph) RemoveNode(n Node) error {
	name := n.Name()
	if _, ok := g.nodes[name]; !ok {
		return &UnknownNodeError{Name: name}
	}
	delete(g.nodes, name)
	delete(g.edges, name)
	for _, edges := range g.edges {
		for v, target := range edges {
			if target == name {
				delete(edges, v)
			}
		}
	}
	if g.start == name {
		g.start = ""
	}
	return nil
}

// RemoveConnectionByNode removes every edge between two nodes.
func (g *Graph) RemoveConnectionByNode(from, to Node) error {
	edges, ok := g.edges[from.Name()]
	if !ok {
		return &UnknownNodeError{Name: from.Name()}
	}
	removed := false
	for v, target := range edges {
		if target == to.Name() {
			delete(edges, v)
			removed = true
		}
	}
	if !removed {
		return &NoConnectionError{From: from.Name(), To: to.Name()}
	}
	return nil
}

// RemoveConnectionByVerdict removes the edge leaving a node with the
// given verdict label.
func (g *Graph) RemoveConnectionByVerdict(from Node, with Verdict) error {
	edges, ok := g.edges[from.Name()]
	if !ok {
		return &UnknownNodeError{Name: from.Name()}
	}
	if _, ok := edges[with]; !ok {
		return &NoConnectionError{From: from.Name(), Verdict: with.String()}
	}
	delete(edges, with)
	return nil
}

// SetStartNode designates the node traversal begins at. The node must
// already be a member of the graph.
func (g *Graph) SetStartNode(n Node) error {
	if _, ok := g.nodes[n.Name()]; !ok {
		return &UnknownNodeError{Name: n.Name()}
	}
	g.start = n.Name()
	return nil
}

// StartNode returns the designated start node.
func (g *Graph) StartNode() (Node, error) {
	if g.start == "" {
		return nil, ErrStartNodeNotSet
	}
	return g.nodes[g.start], nil
}

// Send invokes Start on a member node, passing the arguments through
// uninterpreted, and returns its result unmodified.
func (g *Graph) Send(n Node, args ...any) (any, error) {
	member, ok := g.nodes[n.Name()]
	if !ok {
		return nil, &UnknownNodeError{Name: n.Name()}
	}
	return member.Start(args...)
}

// Advance returns the node the given verdict leads to from n. When no
// edge with that label exists the second return value is false with a
// nil error: an unhandled verdict is a condition for the caller to
// remedy, not a failure of the graph.
func (g *Graph) Advance(n Node, with Verdict) (Node, bool, error) {
	member, ok := g.nodes[n.Name()]
	if !ok {
		return nil, false, &UnknownNodeError{Name: n.Name()}
	}
	if IsEnd(member) {
		return nil, false, &EndNodeError{Name: member.Name(), Op: "advance past"}
	}
	target, ok := g.edges[member.Name()][with]
	if !ok {
		return nil, false, nil
	}
	return g.nodes[target], true, nil
}

// Equal reports whether two graphs have the same node names, the same
// edge structure, and the same start node. Node identity is the name, so
// internal node state does not participate.
func (g *Graph) Equal(other *Graph) bool {
	if other == nil || g.start != other.start || len(g.nodes) != len(other.nodes) {
		return false
	}
	for name := range g.nodes {
		if _, ok := other.nodes[name]; !ok {
			return false
		}
	}
	for name, edges := range g.edges {
		otherEdges, ok := other.edges[name]
		if !ok || len(edges) != len(otherEdges) {
			return false
		}
		for v, target := range edges {
			if otherEdges[v] != target {
				return false
			}
		}
	}
	return true
}
