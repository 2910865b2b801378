package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/baca2-project/judgekeeper/internal/broker"
	"github.com/baca2-project/judgekeeper/internal/judge"
	"github.com/baca2-project/judgekeeper/internal/session"
)

// clearTLSEnvServer prevents TLS initialization from trying to load nonexistent certs.
func clearTLSEnvServer(t *testing.T) {
	t.Setenv("BACA_TLS_CERT", "")
	t.Setenv("BACA_TLS_KEY", "")
	t.Setenv("BACA_TLS_CERT_FILE", "")
	t.Setenv("BACA_TLS_KEY_FILE", "")
}

func setReadiness(t *testing.T, engine, mqtt, mqttOpt, pg, pgOpt bool) {
	t.Helper()
	readiness.mu.Lock()
	readiness.engineReady = engine
	readiness.mqttConnected = mqtt
	readiness.mqttOptional = mqttOpt
	readiness.postgresConnected = pg
	readiness.postgresOptional = pgOpt
	readiness.mu.Unlock()
}

func TestHealthEndpoint(t *testing.T) {
	clearTLSEnvServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
}

func TestReadyEndpoint_AllReady(t *testing.T) {
	clearTLSEnvServer(t)
	setReadiness(t, true, true, false, true, false)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	readyHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp ReadyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !resp.Ready {
		t.Error("expected ready=true")
	}
	if resp.NotReadyMsg != "" {
		t.Errorf("expected empty message, got %q", resp.NotReadyMsg)
	}
}

func TestReadyEndpoint_EngineNotReady(t *testing.T) {
	clearTLSEnvServer(t)
	setReadiness(t, false, true, false, true, false)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	readyHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var resp ReadyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Ready {
		t.Error("expected ready=false")
	}
	if resp.NotReadyMsg == "" {
		t.Error("expected non-empty message")
	}
}

func TestReadyEndpoint_OptionalDependenciesUnavailable(t *testing.T) {
	clearTLSEnvServer(t)
	setReadiness(t, true, false, true, false, true)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	readyHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 (optional dependencies), got %d", w.Code)
	}

	var resp ReadyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !resp.Ready {
		t.Error("expected ready=true with only optional dependencies down")
	}
}

func TestReadyEndpoint_RequiredMQTTNotConnected(t *testing.T) {
	clearTLSEnvServer(t)
	setReadiness(t, true, false, false, true, false)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	readyHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var resp ReadyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Ready {
		t.Error("expected ready=false")
	}
	if !strings.Contains(resp.NotReadyMsg, "mqtt") {
		t.Errorf("message should mention mqtt, got %q", resp.NotReadyMsg)
	}
}

func TestReadyEndpoint_MultipleDependenciesNotReady(t *testing.T) {
	clearTLSEnvServer(t)
	setReadiness(t, false, false, false, true, false)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	readyHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var resp ReadyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Ready {
		t.Error("expected ready=false")
	}
	if !strings.Contains(resp.NotReadyMsg, ";") {
		t.Errorf("message should list both reasons, got %q", resp.NotReadyMsg)
	}
}

func TestSetReadinessState(t *testing.T) {
	clearTLSEnvServer(t)

	SetEngineReady(true)
	readiness.mu.RLock()
	if !readiness.engineReady {
		t.Error("SetEngineReady(true) didn't set state")
	}
	readiness.mu.RUnlock()

	SetEngineReady(false)
	readiness.mu.RLock()
	if readiness.engineReady {
		t.Error("SetEngineReady(false) didn't clear state")
	}
	readiness.mu.RUnlock()

	SetMQTTState(true, false)
	readiness.mu.RLock()
	if !readiness.mqttConnected || readiness.mqttOptional {
		t.Error("SetMQTTState(true, false) didn't set state correctly")
	}
	readiness.mu.RUnlock()

	SetPostgresState(false, true)
	readiness.mu.RLock()
	if readiness.postgresConnected || !readiness.postgresOptional {
		t.Error("SetPostgresState(false, true) didn't set state correctly")
	}
	readiness.mu.RUnlock()
}

// operatorTestManager opens one session on the smallest judgeable
// graph: a single work node feeding an accepting end node.
func operatorTestManager(t *testing.T) (*session.Manager, *session.Session) {
	t.Helper()

	work := &recordingNode{id: "check"}
	done := judge.NewEndNode("done", judge.VerdictOK)
	g, err := judge.FromAdjacency(map[judge.Node]map[judge.Verdict]judge.Node{
		work: {judge.VerdictOK: done},
		done: nil,
	}, work)
	if err != nil {
		t.Fatal(err)
	}

	m := session.NewManager()
	s, err := m.Open("course1___42", g, &broker.SubmitRequest{SubmitID: "course1___42"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}
	return m, s
}

type recordingNode struct {
	id string
}

func (n *recordingNode) Name() string { return n.id }

func (n *recordingNode) Start(args ...any) (any, error) { return nil, nil }

func (n *recordingNode) Receive(args ...any) (judge.Verdict, error) {
	return args[0].(*broker.JudgeResult).Verdict, nil
}

func TestOperatorVerdictEndpoint(t *testing.T) {
	clearTLSEnvServer(t)
	resetAuth()

	m, s := operatorTestManager(t)
	SetSessionManager(m)
	defer SetSessionManager(nil)

	body := `{"submit_id": "course1___42", "verdict": "OK", "operator": "alice"}`
	req := httptest.NewRequest("POST", "/operator/verdict", strings.NewReader(body))
	w := httptest.NewRecorder()

	operatorVerdictHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if s.Status() != session.StatusFinished {
		t.Errorf("session status = %s, want finished", s.Status())
	}
}

func TestOperatorVerdictEndpointRejectsBadInput(t *testing.T) {
	clearTLSEnvServer(t)
	resetAuth()

	m, _ := operatorTestManager(t)
	SetSessionManager(m)
	defer SetSessionManager(nil)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", "{nope", http.StatusBadRequest},
		{"missing submit id", `{"verdict": "OK"}`, http.StatusBadRequest},
		{"bad verdict", `{"submit_id": "course1___42", "verdict": "MAYBE"}`, http.StatusBadRequest},
		{"unknown submit", `{"submit_id": "course1___99", "verdict": "OK"}`, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/operator/verdict", strings.NewReader(c.body))
			w := httptest.NewRecorder()
			operatorVerdictHandler(w, req)
			if w.Code != c.code {
				t.Errorf("status = %d, want %d", w.Code, c.code)
			}
		})
	}

	req := httptest.NewRequest("GET", "/operator/verdict", nil)
	w := httptest.NewRecorder()
	operatorVerdictHandler(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}
}

func TestOperatorAbortEndpoint(t *testing.T) {
	clearTLSEnvServer(t)
	resetAuth()

	m, s := operatorTestManager(t)
	SetSessionManager(m)
	defer SetSessionManager(nil)

	body := `{"submit_id": "course1___42", "reason": "wedged worker"}`
	req := httptest.NewRequest("POST", "/operator/abort", strings.NewReader(body))
	w := httptest.NewRecorder()

	operatorAbortHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if s.Status() != session.StatusFailed {
		t.Errorf("session status = %s, want failed", s.Status())
	}
}

func TestSubmitEndpoint(t *testing.T) {
	clearTLSEnvServer(t)
	resetAuth()

	var got *broker.SubmitRequest
	SetSubmitHandler(func(req *broker.SubmitRequest) error {
		got = req
		return nil
	})
	defer SetSubmitHandler(nil)

	body := `{"submit_id": "course1___77", "package_path": "/packages/intro", "commit_id": "1"}`
	req := httptest.NewRequest("POST", "/submit", strings.NewReader(body))
	w := httptest.NewRecorder()

	submitHandlerEndpoint(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}
	if got == nil || got.SubmitID != "course1___77" || got.PackagePath != "/packages/intro" {
		t.Errorf("handler got %+v", got)
	}
}

func TestSubmitEndpointRejectsBadInput(t *testing.T) {
	clearTLSEnvServer(t)
	resetAuth()

	SetSubmitHandler(func(req *broker.SubmitRequest) error { return nil })
	defer SetSubmitHandler(nil)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", "{nope"},
		{"bad submit id", `{"submit_id": "no separator", "package_path": "/p"}`},
		{"missing package path", `{"submit_id": "course1___1"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/submit", strings.NewReader(c.body))
			w := httptest.NewRecorder()
			submitHandlerEndpoint(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestReportEndpointRejectsMissingParams(t *testing.T) {
	clearTLSEnvServer(t)
	resetAuth()

	req := httptest.NewRequest("GET", "/report", nil)
	w := httptest.NewRecorder()
	reportHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	req = httptest.NewRequest("GET", "/report?package=/nonexistent&commit=1", nil)
	w = httptest.NewRecorder()
	reportHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	clearTLSEnvServer(t)
	resetAuth()

	m, _ := operatorTestManager(t)
	SetSessionManager(m)
	defer SetSessionManager(nil)

	req := httptest.NewRequest("GET", "/sessions", nil)
	w := httptest.NewRecorder()

	sessionsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var views []session.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&views); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(views) != 1 || views[0].SubmitID != "course1___42" {
		t.Errorf("views = %+v", views)
	}
}
