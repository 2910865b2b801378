package broker

import (
	"encoding/json"
	"fmt"

	"github.com/baca2-project/judgekeeper/internal/judge"
)

// Publisher is the part of Client the node needs to dispatch requests.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Node is a judging-graph node whose work happens on a remote judge
// worker. Start publishes a SubmitRequest to the worker's submit topic
// and returns immediately; the verdict arrives later as a JudgeResult
// on the worker's result topic and is handed to Receive.
//
// Only the exported fields travel when a graph is packed. The
// publisher, registry and password are runtime wiring and must be
// re-attached with Attach after unpacking.
type Node struct {
	NodeName   string
	WorkerID   string
	Capability string // what the worker must support, e.g. "cpp"

	publisher Publisher
	registry  *WorkerRegistry
	password  string
}

func init() {
	judge.RegisterNodeType(&Node{})
}

// NewNode creates a broker-backed judging node.
func NewNode(name, workerID, capability string) *Node {
	return &Node{NodeName: name, WorkerID: workerID, Capability: capability}
}

// Attach wires the node to a live broker connection. Must be called on
// every broker node after a graph is unpacked.
func (n *Node) Attach(publisher Publisher, registry *WorkerRegistry, password string) {
	n.publisher = publisher
	n.registry = registry
	n.password = password
}

// Attached reports whether the node has live broker wiring.
func (n *Node) Attached() bool {
	return n.publisher != nil && n.registry != nil
}

// Name returns the node name.
func (n *Node) Name() string { return n.NodeName }

// Start dispatches a SubmitRequest to the node's worker. The single
// argument must be a *SubmitRequest; its node and pass hash fields are
// filled in here. The returned value is the topic the request went to.
func (n *Node) Start(args ...any) (any, error) {
	if !n.Attached() {
		return nil, fmt.Errorf("node %s: broker wiring not attached", n.NodeName)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("node %s: expected one argument, got %d", n.NodeName, len(args))
	}
	req, ok := args[0].(*SubmitRequest)
	if !ok {
		return nil, fmt.Errorf("node %s: expected *SubmitRequest, got %T", n.NodeName, args[0])
	}

	if err := n.registry.ValidateDispatch(n.WorkerID, n.Capability); err != nil {
		return nil, fmt.Errorf("node %s: %w", n.NodeName, err)
	}

	out := *req
	out.Version = ProtocolVersion
	out.Node = n.NodeName
	out.PassHash = MakeHash(n.password, req.SubmitID)

	payload, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("node %s: encoding request: %w", n.NodeName, err)
	}

	topic := n.registry.SubmitTopic(n.WorkerID)
	if err := n.publisher.Publish(topic, payload); err != nil {
		return nil, fmt.Errorf("node %s: publishing to %s: %w", n.NodeName, topic, err)
	}
	return topic, nil
}

// Receive maps a worker's answer to a verdict. The single argument
// must be a *JudgeResult addressed to this node.
func (n *Node) Receive(args ...any) (judge.Verdict, error) {
	if len(args) != 1 {
		return judge.VerdictInconclusive, fmt.Errorf("node %s: expected one argument, got %d", n.NodeName, len(args))
	}
	result, ok := args[0].(*JudgeResult)
	if !ok {
		return judge.VerdictInconclusive, fmt.Errorf("node %s: expected *JudgeResult, got %T", n.NodeName, args[0])
	}
	if result.Node != "" && result.Node != n.NodeName {
		return judge.VerdictInconclusive, fmt.Errorf("node %s: result addressed to node %s", n.NodeName, result.Node)
	}
	return result.Verdict, nil
}
