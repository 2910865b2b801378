package judge

import (
	"errors"
	"fmt"
)

// ErrStartNodeNotSet is returned by StartNode before a start node has
// been configured.
var ErrStartNodeNotSet = errors.New("start node is not set")

// DuplicateNodeError indicates an insertion whose name is already taken.
type DuplicateNodeError struct {
	Name string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node with name %q has already been added", e.Name)
}

// UnknownNodeError indicates a reference to a node that is not a member
// of the graph.
type UnknownNodeError struct {
	Name string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("no node with name %q", e.Name)
}

// EndNodeError indicates an operation that is invalid on an end node:
// advancing past it, adding an outgoing edge, or starting it.
type EndNodeError struct {
	Name string
	Op   string
}

func (e *EndNodeError) Error() string {
	return fmt.Sprintf("cannot %s end node %q", e.Op, e.Name)
}

// NoConnectionError indicates an edge removal that matched nothing.
type NoConnectionError struct {
	From    string
	To      string // set when removing by target node
	Verdict string // set when removing by verdict label
}

func (e *NoConnectionError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("no connection from %q to %q", e.From, e.To)
	}
	return fmt.Sprintf("no connection from %q with verdict %s", e.From, e.Verdict)
}
