package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/baca2-project/judgekeeper/internal/broker"
	"github.com/baca2-project/judgekeeper/internal/events"
	"github.com/baca2-project/judgekeeper/internal/judge"
)

// Manager owns every in-flight judging session and routes worker
// answers to them by submit id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Open creates and registers a session for a submission. The submit id
// must not already be in flight.
func (m *Manager) Open(submitID string, g *judge.Graph, req *broker.SubmitRequest) (*Session, error) {
	s, err := New(submitID, g, req)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[submitID]; exists {
		return nil, fmt.Errorf("submit %s already in flight", submitID)
	}
	m.sessions[submitID] = s
	return s, nil
}

// Get returns the session judging a submission, or nil.
func (m *Manager) Get(submitID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[submitID]
}

// Remove drops a session from the manager.
func (m *Manager) Remove(submitID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, submitID)
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Views returns snapshots of every session, sorted by submit id.
func (m *Manager) Views() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	views := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].SubmitID < views[j].SubmitID })
	return views
}

// OnResult routes a worker answer to its session. Answers for unknown
// submissions are recorded as judge.error and dropped.
func (m *Manager) OnResult(result *broker.JudgeResult) {
	s := m.Get(result.SubmitID)
	if s == nil {
		events.Emit("error", "judge.error", "result for unknown submit", map[string]any{
			"submit_id": result.SubmitID,
			"node":      result.Node,
		})
		return
	}
	if err := s.OnResult(result); err != nil {
		events.EmitSubmit(result.SubmitID, "error", "judge.error", "result rejected", map[string]any{
			"node":  result.Node,
			"error": err.Error(),
		})
	}
}

// OnError routes a worker error report to its session.
func (m *Manager) OnError(report *broker.ErrorReport) {
	s := m.Get(report.SubmitID)
	if s == nil {
		events.Emit("error", "judge.error", "error report for unknown submit", map[string]any{
			"submit_id": report.SubmitID,
		})
		return
	}
	switch s.Status() {
	case StatusFinished, StatusFailed:
		events.EmitSubmit(report.SubmitID, "error", "judge.error", "error report for terminal submit", map[string]any{
			"error": report.Error,
		})
	default:
		// Fail returns the failure it just recorded; that is already
		// emitted as submit.failed.
		_ = s.Fail(report.Error)
	}
}

// Stuck returns the submit ids of running sessions that have not moved
// for longer than maxIdle.
func (m *Manager) Stuck(maxIdle time.Duration) []string {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	cutoff := time.Now().Add(-maxIdle)
	var ids []string
	for _, s := range sessions {
		if s.Status() == StatusRunning && s.IdleSince().Before(cutoff) {
			ids = append(ids, s.SubmitID())
		}
	}
	sort.Strings(ids)
	return ids
}
