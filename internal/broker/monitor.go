package broker

import (
	"sync"
	"time"

	"github.com/baca2-project/judgekeeper/internal/events"
)

// WorkerState tracks a registered worker's health.
type WorkerState struct {
	WorkerID     string
	Kind         string
	LastSeen     time.Time
	HeartbeatSec int
	Connected    bool
}

// Monitor tracks worker registration and health. Registrations double
// as heartbeats; a worker that stays silent past its advertised
// interval times tolerance is marked disconnected.
type Monitor struct {
	mu        sync.RWMutex
	workers   map[string]*WorkerState
	specs     map[string]WorkerSpec
	tolerance float64
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a new worker monitor. tolerance is the multiplier
// for the heartbeat interval before considering a worker disconnected.
func NewMonitor(specs map[string]WorkerSpec, tolerance float64) *Monitor {
	if tolerance <= 1.0 {
		tolerance = 2.0 // default: miss one heartbeat
	}
	return &Monitor{
		workers:   make(map[string]*WorkerState),
		specs:     specs,
		tolerance: tolerance,
		stopCh:    make(chan struct{}),
	}
}

// HandleRegistration processes a registration payload, emitting
// judge.connected on success and judge.error on validation failure.
func (m *Monitor) HandleRegistration(payload *RegistrationPayload) *ValidationResult {
	result := ValidateRegistration(payload, m.specs)

	m.mu.Lock()
	defer m.mu.Unlock()

	workerID := payload.Worker.ID
	now := time.Now()

	existing, seen := m.workers[workerID]
	isReconnect := seen && existing != nil && !existing.Connected

	if result.Valid {
		first := !seen
		m.workers[workerID] = &WorkerState{
			WorkerID:     workerID,
			Kind:         payload.Worker.Kind,
			LastSeen:     now,
			HeartbeatSec: payload.Worker.HeartbeatSec,
			Connected:    true,
		}

		if first {
			events.Emit("info", "judge.registered", "", map[string]any{
				"worker_id":    workerID,
				"kind":         payload.Worker.Kind,
				"capabilities": payload.Worker.Capabilities,
			})
		}
		events.Emit("info", "judge.connected", "", map[string]any{
			"worker_id": workerID,
			"kind":      payload.Worker.Kind,
			"reconnect": isReconnect,
		})
	} else {
		events.Emit("error", "judge.error", "registration validation failed", map[string]any{
			"worker_id": workerID,
			"errors":    result.Errors,
		})
	}

	return result
}

// Start begins the background health check loop.
func (m *Monitor) Start(checkInterval time.Duration) {
	m.wg.Add(1)
	go m.healthCheckLoop(checkInterval)
}

// Stop stops the background health check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) healthCheckLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

func (m *Monitor) checkHealth() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for workerID, state := range m.workers {
		if !state.Connected {
			continue
		}

		timeout := time.Duration(float64(state.HeartbeatSec)*m.tolerance) * time.Second
		if now.Sub(state.LastSeen) > timeout {
			state.Connected = false

			events.Emit("warning", "judge.disconnected", "heartbeat timeout", map[string]any{
				"worker_id":   workerID,
				"kind":        state.Kind,
				"last_seen":   state.LastSeen.Format(time.RFC3339),
				"timeout_sec": timeout.Seconds(),
			})
		}
	}
}

// WorkerStateFor returns the state of a worker for inspection.
func (m *Monitor) WorkerStateFor(workerID string) *WorkerState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.workers[workerID]; ok {
		cpy := *state
		return &cpy
	}
	return nil
}

// ConnectedWorkers returns the ids of currently connected workers.
func (m *Monitor) ConnectedWorkers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, state := range m.workers {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}
