package broker

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/baca2-project/judgekeeper/internal/judge"
)

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestNodeStartPublishesRequest(t *testing.T) {
	const password = "s3cret"
	pub := &fakePublisher{}
	registry := NewWorkerRegistry()
	registry.RegisterFromPayload(validPayload())

	n := NewNode("run_tests", "kolejka-1", "cpp")
	n.Attach(pub, registry, password)

	req := &SubmitRequest{
		SubmitID:    "course1___42",
		PackagePath: "/packages/sums",
		CommitID:    "1",
		SubmitPath:  "/submits/42/solution.cpp",
	}
	out, err := n.Start(req)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if out != "judges/kolejka-1/submit" {
		t.Errorf("published topic = %v", out)
	}

	if len(pub.payloads) != 1 {
		t.Fatalf("publish count = %d", len(pub.payloads))
	}
	var sent SubmitRequest
	if err := json.Unmarshal(pub.payloads[0], &sent); err != nil {
		t.Fatal(err)
	}
	if sent.Node != "run_tests" {
		t.Errorf("request node = %q", sent.Node)
	}
	if sent.Version != ProtocolVersion {
		t.Errorf("request version = %d", sent.Version)
	}
	if !VerifyHash(password, "course1___42", sent.PassHash) {
		t.Error("request pass hash does not verify")
	}
	// The caller's request must stay untouched.
	if req.PassHash != "" || req.Node != "" {
		t.Error("Start mutated the caller's request")
	}
}

func TestNodeStartValidation(t *testing.T) {
	registry := NewWorkerRegistry()
	registry.RegisterFromPayload(validPayload())
	req := &SubmitRequest{SubmitID: "course1___1"}

	detached := NewNode("run_tests", "kolejka-1", "cpp")
	if _, err := detached.Start(req); err == nil {
		t.Error("detached node should refuse to start")
	}

	n := NewNode("run_tests", "kolejka-1", "java")
	n.Attach(&fakePublisher{}, registry, "pw")
	if _, err := n.Start(req); err == nil {
		t.Error("unsupported capability should refuse to start")
	}

	n = NewNode("run_tests", "kolejka-1", "cpp")
	n.Attach(&fakePublisher{}, registry, "pw")
	if _, err := n.Start("not a request"); err == nil {
		t.Error("wrong argument type should refuse to start")
	}
	if _, err := n.Start(); err == nil {
		t.Error("missing argument should refuse to start")
	}
}

func TestNodeReceive(t *testing.T) {
	n := NewNode("run_tests", "kolejka-1", "cpp")

	v, err := n.Receive(&JudgeResult{Node: "run_tests", Verdict: judge.VerdictOK})
	if err != nil || v != judge.VerdictOK {
		t.Errorf("Receive = (%v, %v), want (OK, nil)", v, err)
	}

	// A result without node addressing is accepted.
	v, err = n.Receive(&JudgeResult{Verdict: judge.VerdictInconclusive})
	if err != nil || v != judge.VerdictInconclusive {
		t.Errorf("Receive = (%v, %v), want (INCONCLUSIVE, nil)", v, err)
	}

	if _, err := n.Receive(&JudgeResult{Node: "other"}); err == nil {
		t.Error("result addressed elsewhere should be rejected")
	}
	if _, err := n.Receive("junk"); err == nil {
		t.Error("wrong argument type should be rejected")
	}
}

func TestNodeSurvivesGraphPack(t *testing.T) {
	n := NewNode("run_tests", "kolejka-1", "cpp")
	end := judge.NewEndNode("accept", judge.VerdictOK)
	g, err := judge.FromAdjacency(map[judge.Node]map[judge.Verdict]judge.Node{
		n:   {judge.VerdictOK: end, judge.VerdictFail: end},
		end: nil,
	}, n)
	if err != nil {
		t.Fatal(err)
	}

	data, err := g.Pack()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := judge.Unpack(data)
	if err != nil {
		t.Fatal(err)
	}

	start, err := restored.StartNode()
	if err != nil {
		t.Fatal(err)
	}
	rn, ok := start.(*Node)
	if !ok {
		t.Fatalf("restored start node is %T", start)
	}
	if rn.WorkerID != "kolejka-1" || rn.Capability != "cpp" {
		t.Errorf("restored node lost fields: %+v", rn)
	}
	// Runtime wiring does not travel; it is re-attached after unpack.
	if rn.Attached() {
		t.Error("restored node should not be attached")
	}
	registry := NewWorkerRegistry()
	registry.RegisterFromPayload(validPayload())
	rn.Attach(&fakePublisher{}, registry, "pw")
	if _, err := rn.Start(&SubmitRequest{SubmitID: "course1___9"}); err != nil {
		t.Errorf("restored node cannot start: %v", err)
	}
}
