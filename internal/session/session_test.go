package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baca2-project/judgekeeper/internal/broker"
	"github.com/baca2-project/judgekeeper/internal/events"
	"github.com/baca2-project/judgekeeper/internal/judge"
)

// stageNode is a judging node that records dispatches and answers with
// whatever verdict the test feeds in.
type stageNode struct {
	ID string

	mu      sync.Mutex
	started int
}

func (n *stageNode) Name() string { return n.ID }

func (n *stageNode) Start(args ...any) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started++
	return nil, nil
}

func (n *stageNode) Receive(args ...any) (judge.Verdict, error) {
	result := args[0].(*broker.JudgeResult)
	return result.Verdict, nil
}

func (n *stageNode) startCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.started
}

// judgingGraph builds compile -> run -> accept/reject. The compile
// node has no INCONCLUSIVE edge on purpose.
func judgingGraph(t *testing.T) (*judge.Graph, *stageNode, *stageNode) {
	t.Helper()

	compile := &stageNode{ID: "compile"}
	run := &stageNode{ID: "run"}
	accept := judge.NewEndNode("accept", judge.VerdictOK)
	reject := judge.NewEndNode("reject", judge.VerdictFail)
	g, err := judge.FromAdjacency(map[judge.Node]map[judge.Verdict]judge.Node{
		compile: {judge.VerdictOK: run, judge.VerdictFail: reject},
		run:     {judge.VerdictOK: accept, judge.VerdictFail: reject},
		accept:  nil,
		reject:  nil,
	}, compile)
	if err != nil {
		t.Fatal(err)
	}
	return g, compile, run
}

func result(submitID, node string, v judge.Verdict) *broker.JudgeResult {
	return &broker.JudgeResult{
		Version:  broker.ProtocolVersion,
		SubmitID: submitID,
		Node:     node,
		Verdict:  v,
	}
}

func TestSessionWalksToAccept(t *testing.T) {
	g, compile, run := judgingGraph(t)
	s, err := New("course1___1", g, &broker.SubmitRequest{SubmitID: "course1___1"})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Begin(); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if s.CurrentNode() != "compile" || compile.startCount() != 1 {
		t.Fatal("session should start at compile and dispatch it")
	}

	if err := s.OnResult(result("course1___1", "compile", judge.VerdictOK)); err != nil {
		t.Fatal(err)
	}
	if s.CurrentNode() != "run" || run.startCount() != 1 {
		t.Fatal("OK at compile should advance to run and dispatch it")
	}

	if err := s.OnResult(result("course1___1", "run", judge.VerdictOK)); err != nil {
		t.Fatal(err)
	}
	if s.Status() != StatusFinished {
		t.Fatalf("status = %s, want finished", s.Status())
	}
	v, ok := s.FinalVerdict()
	if !ok || v != judge.VerdictOK {
		t.Errorf("final verdict = (%v, %v), want OK", v, ok)
	}
}

func TestSessionFailPath(t *testing.T) {
	g, _, _ := judgingGraph(t)
	s, err := New("course1___2", g, &broker.SubmitRequest{SubmitID: "course1___2"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}

	if err := s.OnResult(result("course1___2", "compile", judge.VerdictFail)); err != nil {
		t.Fatal(err)
	}
	if s.Status() != StatusFinished {
		t.Fatalf("status = %s, want finished", s.Status())
	}
	if v, _ := s.FinalVerdict(); v != judge.VerdictFail {
		t.Errorf("final verdict = %v, want FAIL", v)
	}
}

func TestSessionStuckWaitsForOperator(t *testing.T) {
	g, _, _ := judgingGraph(t)
	s, err := New("course1___3", g, &broker.SubmitRequest{SubmitID: "course1___3"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}

	// compile has no INCONCLUSIVE edge; the session must hold position.
	if err := s.OnResult(result("course1___3", "compile", judge.VerdictInconclusive)); err != nil {
		t.Fatal(err)
	}
	if s.Status() != StatusRunning || s.CurrentNode() != "compile" {
		t.Fatal("session should stay at compile when no edge matches")
	}

	// Operator pushes it forward.
	if err := s.ForceVerdict(judge.VerdictOK, "alice"); err != nil {
		t.Fatal(err)
	}
	if s.CurrentNode() != "run" {
		t.Errorf("current = %s, want run", s.CurrentNode())
	}
}

func TestSessionRejectsMisaddressedResults(t *testing.T) {
	g, _, run := judgingGraph(t)
	s, err := New("course1___4", g, &broker.SubmitRequest{SubmitID: "course1___4"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}

	if err := s.OnResult(result("course1___4", "run", judge.VerdictOK)); err == nil {
		t.Error("result for a node the session is not at should be rejected")
	}
	if s.Status() != StatusRunning || run.startCount() != 0 {
		t.Error("misaddressed result must not move the session")
	}

	if err := s.Begin(); err == nil {
		t.Error("second Begin should fail")
	}
}

func TestSessionAbort(t *testing.T) {
	g, _, _ := judgingGraph(t)
	s, err := New("course1___5", g, &broker.SubmitRequest{SubmitID: "course1___5"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}

	if err := s.Abort("operator gave up"); err == nil {
		t.Error("Abort should surface the failure")
	} else if !strings.Contains(err.Error(), "operator gave up") {
		t.Errorf("abort error = %v", err)
	}
	if s.Status() != StatusFailed {
		t.Fatalf("status = %s, want failed", s.Status())
	}

	if err := s.OnResult(result("course1___5", "compile", judge.VerdictOK)); err == nil {
		t.Error("failed session should reject results")
	}
}

func TestManagerRouting(t *testing.T) {
	m := NewManager()
	g1, _, _ := judgingGraph(t)
	g2, _, _ := judgingGraph(t)

	s1, err := m.Open("course1___10", g1, &broker.SubmitRequest{SubmitID: "course1___10"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Open("course1___10", g2, &broker.SubmitRequest{}); err == nil {
		t.Error("duplicate submit id should be rejected")
	}
	s2, err := m.Open("course1___11", g2, &broker.SubmitRequest{SubmitID: "course1___11"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := s2.Begin(); err != nil {
		t.Fatal(err)
	}

	m.OnResult(result("course1___10", "compile", judge.VerdictOK))
	if s1.CurrentNode() != "run" {
		t.Error("result not routed to its session")
	}
	if s2.CurrentNode() != "compile" {
		t.Error("result leaked into the wrong session")
	}

	// Unknown submits are dropped without panicking.
	m.OnResult(result("course1___99", "compile", judge.VerdictOK))

	m.OnError(&broker.ErrorReport{SubmitID: "course1___11", Error: "sandbox crashed"})
	if s2.Status() != StatusFailed {
		t.Error("error report should fail its session")
	}

	views := m.Views()
	if len(views) != 2 || views[0].SubmitID != "course1___10" {
		t.Errorf("views = %+v", views)
	}

	m.Remove("course1___11")
	if m.Count() != 1 {
		t.Errorf("count = %d, want 1", m.Count())
	}
}

func countEvents(name string) int {
	n := 0
	for _, e := range events.Snapshot() {
		if e.Name == name {
			n++
		}
	}
	return n
}

func TestManagerRecordsRoutingFailures(t *testing.T) {
	m := NewManager()
	g, _, _ := judgingGraph(t)
	s, err := m.Open("course1___30", g, &broker.SubmitRequest{SubmitID: "course1___30"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}

	// A result addressed to a node the session is not at must surface
	// as a judge.error event, not vanish.
	events.Clear()
	m.OnResult(result("course1___30", "run", judge.VerdictOK))
	if got := countEvents("judge.error"); got != 1 {
		t.Errorf("judge.error events after misaddressed result = %d, want 1", got)
	}
	if s.CurrentNode() != "compile" {
		t.Error("misaddressed result must not move the session")
	}

	// An error report for an already finished session is recorded too.
	m.OnResult(result("course1___30", "compile", judge.VerdictFail))
	if s.Status() != StatusFinished {
		t.Fatalf("status = %s, want finished", s.Status())
	}
	events.Clear()
	m.OnError(&broker.ErrorReport{SubmitID: "course1___30", Error: "late crash"})
	if got := countEvents("judge.error"); got != 1 {
		t.Errorf("judge.error events after late error report = %d, want 1", got)
	}
	if s.Status() != StatusFinished {
		t.Error("late error report must not change a finished session")
	}
}

func TestManagerStuck(t *testing.T) {
	m := NewManager()
	g, _, _ := judgingGraph(t)
	s, err := m.Open("course1___20", g, &broker.SubmitRequest{SubmitID: "course1___20"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}

	if got := m.Stuck(time.Hour); len(got) != 0 {
		t.Errorf("fresh session reported stuck: %v", got)
	}

	s.mu.Lock()
	s.lastMove = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()

	got := m.Stuck(time.Hour)
	if len(got) != 1 || got[0] != "course1___20" {
		t.Errorf("stuck = %v, want [course1___20]", got)
	}
}
