package broker

import (
	"testing"
	"time"
)

func monitorSpecs() map[string]WorkerSpec {
	return map[string]WorkerSpec{
		"kolejka-1": {Kind: "kolejka", Required: true, Capabilities: []string{"cpp"}},
	}
}

func TestMonitorHandleRegistration(t *testing.T) {
	m := NewMonitor(monitorSpecs(), 2.0)

	result := m.HandleRegistration(validPayload())
	if !result.Valid {
		t.Fatalf("valid registration rejected: %v", result.Errors)
	}

	state := m.WorkerStateFor("kolejka-1")
	if state == nil || !state.Connected {
		t.Fatal("worker should be connected after registration")
	}
	if state.HeartbeatSec != 5 {
		t.Errorf("heartbeat = %d, want 5", state.HeartbeatSec)
	}

	bad := validPayload()
	bad.Worker.Kind = "other"
	if m.HandleRegistration(bad).Valid {
		t.Error("invalid registration accepted")
	}
}

func TestMonitorMarksSilentWorkersDisconnected(t *testing.T) {
	m := NewMonitor(monitorSpecs(), 2.0)
	m.HandleRegistration(validPayload())

	// Age the worker past heartbeat * tolerance.
	m.mu.Lock()
	m.workers["kolejka-1"].LastSeen = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	m.checkHealth()

	state := m.WorkerStateFor("kolejka-1")
	if state == nil || state.Connected {
		t.Fatal("silent worker should be disconnected")
	}
	if got := m.ConnectedWorkers(); len(got) != 0 {
		t.Errorf("connected workers = %v, want none", got)
	}

	// A fresh registration is a reconnect.
	if result := m.HandleRegistration(validPayload()); !result.Valid {
		t.Fatalf("reregistration rejected: %v", result.Errors)
	}
	if state := m.WorkerStateFor("kolejka-1"); state == nil || !state.Connected {
		t.Error("worker should be connected again after reregistration")
	}
}
