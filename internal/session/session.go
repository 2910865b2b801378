// Package session drives submissions through judging graphs. One
// Session owns one submission: it walks the graph node by node,
// dispatching work through each node's Start and feeding worker
// answers back through Receive. Every move is emitted as an event
// scoped to the submit id, which is also what restore replays.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/baca2-project/judgekeeper/internal/broker"
	"github.com/baca2-project/judgekeeper/internal/events"
	"github.com/baca2-project/judgekeeper/internal/judge"
)

// Status is the lifecycle state of a judging session.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Session is one submission in flight through a judging graph.
type Session struct {
	mu        sync.Mutex
	submitID  string
	request   *broker.SubmitRequest
	graph     *judge.Graph
	current   judge.Node
	status    Status
	final     judge.Verdict
	hasFinal  bool
	startedAt time.Time
	lastMove  time.Time
}

// Snapshot is a read-only view of a session for the API.
type Snapshot struct {
	SubmitID  string    `json:"submit_id"`
	Status    Status    `json:"status"`
	Node      string    `json:"node,omitempty"`
	Verdict   string    `json:"verdict,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a session for one submission. The graph must have a
// start node; one graph instance belongs to one session.
func New(submitID string, g *judge.Graph, req *broker.SubmitRequest) (*Session, error) {
	if _, err := g.StartNode(); err != nil {
		return nil, fmt.Errorf("session %s: %w", submitID, err)
	}
	now := time.Now()
	return &Session{
		submitID:  submitID,
		request:   req,
		graph:     g,
		status:    StatusPending,
		startedAt: now,
		lastMove:  now,
	}, nil
}

// SubmitID returns the submission this session judges.
func (s *Session) SubmitID() string { return s.submitID }

// Begin starts judging at the graph's start node.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPending {
		return fmt.Errorf("session %s: already begun", s.submitID)
	}

	start, err := s.graph.StartNode()
	if err != nil {
		return err
	}
	s.current = start
	s.status = StatusRunning

	s.emit("info", "submit.received", "", map[string]any{
		"package_path": s.request.PackagePath,
		"commit_id":    s.request.CommitID,
	})

	return s.startCurrent()
}

// OnResult feeds a worker's answer into the session and advances the
// graph. Results addressed to a node other than the current one are
// rejected.
func (s *Session) OnResult(result *broker.JudgeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return fmt.Errorf("session %s: not running", s.submitID)
	}
	if result.Node != "" && result.Node != s.current.Name() {
		return fmt.Errorf("session %s: result for node %s while at %s",
			s.submitID, result.Node, s.current.Name())
	}

	verdict, err := s.current.Receive(result)
	if err != nil {
		return s.fail(fmt.Sprintf("receive at %s: %v", s.current.Name(), err))
	}

	s.emit("info", "node.verdict", "", map[string]any{
		"node":    s.current.Name(),
		"verdict": verdict.String(),
	})

	return s.advance(verdict)
}

// ForceVerdict lets an operator push the session forward when a worker
// answer is lost or wrong. The verdict is applied to the current node
// as if it had been received.
func (s *Session) ForceVerdict(v judge.Verdict, operator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return fmt.Errorf("session %s: not running", s.submitID)
	}

	s.emit("warning", "operator.force_verdict", "", map[string]any{
		"node":     s.current.Name(),
		"verdict":  v.String(),
		"operator": operator,
	})

	return s.advance(v)
}

// Abort marks the session failed on operator or system request.
func (s *Session) Abort(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusFinished || s.status == StatusFailed {
		return fmt.Errorf("session %s: already terminal", s.submitID)
	}
	s.emit("warning", "operator.abort", reason, nil)
	return s.fail(reason)
}

// Fail marks the session failed because of a worker error report.
func (s *Session) Fail(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusFinished || s.status == StatusFailed {
		return fmt.Errorf("session %s: already terminal", s.submitID)
	}
	return s.fail(reason)
}

// advance moves to the successor under the given verdict. Caller holds
// the lock.
func (s *Session) advance(v judge.Verdict) error {
	next, ok, err := s.graph.Advance(s.current, v)
	if err != nil {
		return s.fail(fmt.Sprintf("advance from %s: %v", s.current.Name(), err))
	}
	if !ok {
		// No edge for this verdict. The session stays where it is and
		// waits for an operator.
		s.emit("warning", "node.stuck", "", map[string]any{
			"node":    s.current.Name(),
			"verdict": v.String(),
		})
		return nil
	}

	s.emit("info", "node.advanced", "", map[string]any{
		"from":    s.current.Name(),
		"to":      next.Name(),
		"verdict": v.String(),
	})
	s.current = next
	s.lastMove = time.Now()

	if judge.IsEnd(next) {
		meaning, err := next.Receive()
		if err != nil {
			return s.fail(fmt.Sprintf("end node %s: %v", next.Name(), err))
		}
		s.final = meaning
		s.hasFinal = true
		s.status = StatusFinished
		s.emit("info", "submit.judged", "", map[string]any{
			"verdict": meaning.String(),
		})
		return nil
	}

	return s.startCurrent()
}

// startCurrent dispatches the current node's work. Caller holds the
// lock.
func (s *Session) startCurrent() error {
	s.emit("info", "node.started", "", map[string]any{
		"node": s.current.Name(),
	})
	s.lastMove = time.Now()

	if _, err := s.current.Start(s.request); err != nil {
		return s.fail(fmt.Sprintf("start at %s: %v", s.current.Name(), err))
	}
	return nil
}

// fail transitions to StatusFailed. Caller holds the lock.
func (s *Session) fail(reason string) error {
	s.status = StatusFailed
	s.lastMove = time.Now()
	s.emit("error", "submit.failed", reason, nil)
	return fmt.Errorf("session %s: %s", s.submitID, reason)
}

func (s *Session) emit(level, name, msg string, fields map[string]any) {
	events.EmitSubmit(s.submitID, level, name, msg, fields)
}

// Status returns the session's lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentNode returns the name of the node the session sits at.
func (s *Session) CurrentNode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Name()
}

// FinalVerdict returns the submission's verdict once judging finished.
func (s *Session) FinalVerdict() (judge.Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final, s.hasFinal
}

// IdleSince returns the time of the session's last move.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMove
}

// View returns a snapshot for the API.
func (s *Session) View() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SubmitID:  s.submitID,
		Status:    s.status,
		StartedAt: s.startedAt,
		UpdatedAt: s.lastMove,
	}
	if s.current != nil {
		snap.Node = s.current.Name()
	}
	if s.hasFinal {
		snap.Verdict = s.final.String()
	}
	return snap
}
