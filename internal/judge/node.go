package judge

import "encoding/gob"

// Node is one step of submission checking in a decision graph.
//
// Identity is the name: two nodes with the same name are the same node as
// far as a Graph is concerned, whatever their internal state. Start kicks
// off the (possibly long-running, externally executed) check and returns
// immediately; Receive is called later, once the external result is
// available, and turns it into a Verdict. The two calls are deliberately
// decoupled; how the caller learns that a result is ready is not this
// package's business.
type Node interface {
	Name() string

	// Start initiates the check for a submission. Arguments are opaque
	// to the graph and passed through unmodified. Start must not block
	// waiting for the check to finish.
	Start(args ...any) (any, error)

	// Receive consumes the outcome of the work Start initiated and
	// returns exactly one Verdict.
	Receive(args ...any) (Verdict, error)
}

// EndNode marks the end of a traversal and carries the final verdict of
// all checks. It never has outgoing edges, and starting it is a usage
// error.
type EndNode struct {
	NodeName string
	Meaning  Verdict
}

// NewEndNode creates an end node yielding the given final verdict.
func NewEndNode(name string, meaning Verdict) *EndNode {
	return &EndNode{NodeName: name, Meaning: meaning}
}

func (n *EndNode) Name() string { return n.NodeName }

// Start on an end node is invalid: there is nothing left to check.
func (n *EndNode) Start(args ...any) (any, error) {
	return nil, &EndNodeError{Name: n.NodeName, Op: "start"}
}

// Receive ignores its arguments and returns the fixed final verdict.
func (n *EndNode) Receive(args ...any) (Verdict, error) {
	return n.Meaning, nil
}

// IsEnd reports whether the node is an end node.
func IsEnd(n Node) bool {
	_, ok := n.(*EndNode)
	return ok
}

// RegisterNodeType registers a concrete Node implementation with the
// serializer. Every node type that may appear in a packed graph must be
// registered before Pack or Unpack is called; EndNode is pre-registered.
func RegisterNodeType(n Node) {
	gob.Register(n)
}

func init() {
	gob.Register(&EndNode{})
}
