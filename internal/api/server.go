package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/baca2-project/judgekeeper/internal/broker"
	"github.com/baca2-project/judgekeeper/internal/events"
	"github.com/baca2-project/judgekeeper/internal/judge"
	"github.com/baca2-project/judgekeeper/internal/pkgtree"
	"github.com/baca2-project/judgekeeper/internal/session"
)

var sessions *session.Manager

// SetSessionManager wires the session layer into the API handlers.
func SetSessionManager(m *session.Manager) {
	sessions = m
}

// SubmitHandler accepts a new submission for judging. The service
// main wires this to package loading and session creation.
type SubmitHandler func(*broker.SubmitRequest) error

var submitHandler SubmitHandler

// SetSubmitHandler installs the submission intake callback.
func SetSubmitHandler(h SubmitHandler) {
	submitHandler = h
}

// readiness tracks the state of the keeper's dependencies for the
// /ready endpoint. Optional dependencies do not block readiness.
var readiness = struct {
	mu                sync.RWMutex
	engineReady       bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}{}

// SetEngineReady marks the judging engine as ready to accept submits.
func SetEngineReady(ready bool) {
	readiness.mu.Lock()
	readiness.engineReady = ready
	readiness.mu.Unlock()
}

// SetMQTTState records broker connectivity. Optional connections do
// not affect readiness but still show up in metrics.
func SetMQTTState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

// SetPostgresState records event store connectivity.
func SetPostgresState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.postgresOptional = optional
	readiness.mu.Unlock()
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "judgekeeper",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type ReadyResponse struct {
	Ready       bool   `json:"ready"`
	NotReadyMsg string `json:"not_ready_msg,omitempty"`
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	engineReady := readiness.engineReady
	mqttConnected := readiness.mqttConnected
	mqttOptional := readiness.mqttOptional
	postgresConnected := readiness.postgresConnected
	postgresOptional := readiness.postgresOptional
	readiness.mu.RUnlock()

	var reasons []string
	if !engineReady {
		reasons = append(reasons, "engine not ready")
	}
	if !mqttConnected && !mqttOptional {
		reasons = append(reasons, "mqtt not connected")
	}
	if !postgresConnected && !postgresOptional {
		reasons = append(reasons, "postgres not connected")
	}

	resp := ReadyResponse{Ready: len(reasons) == 0}
	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		resp.NotReadyMsg = strings.Join(reasons, "; ")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events.Snapshot())
}

// eventLogHandler serves the durable event log from Postgres. With a
// submit_id query parameter it returns that submission's full history
// in order; otherwise the newest rows up to limit.
func eventLogHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	client := events.GetPostgresClient()
	if client == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "event log not available"})
		return
	}

	if submitID := r.URL.Query().Get("submit_id"); submitID != "" {
		rows, err := client.QueryBySubmit(submitID)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(rows)
		return
	}

	limit := 200
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := client.Query(limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func sessionsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if sessions == nil {
		_ = json.NewEncoder(w).Encode([]session.Snapshot{})
		return
	}
	_ = json.NewEncoder(w).Encode(sessions.Views())
}

// submitHandlerEndpoint takes a submission request from the web app
// and hands it to the judging engine.
func submitHandlerEndpoint(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeOperatorError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req broker.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOperatorError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if _, _, err := broker.SplitSubmitID(req.SubmitID); err != nil {
		writeOperatorError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PackagePath == "" {
		writeOperatorError(w, http.StatusBadRequest, "package_path required")
		return
	}

	if submitHandler == nil {
		writeOperatorError(w, http.StatusServiceUnavailable, "submissions not accepted")
		return
	}
	if err := submitHandler(&req); err != nil {
		writeOperatorError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(OperatorResponse{OK: true})
}

// reportHandler loads a package's judging graph and returns its
// integrity report.
func reportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	root := r.URL.Query().Get("package")
	commit := r.URL.Query().Get("commit")
	if root == "" || commit == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "package and commit required"})
		return
	}

	pkg, err := pkgtree.OpenPackage(root, commit)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	g, err := pkg.LoadGraph()
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	report, err := g.CheckIntegrity()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(report)
}

type OperatorVerdictRequest struct {
	SubmitID string `json:"submit_id"`
	Verdict  string `json:"verdict"`
	Operator string `json:"operator"`
}

type OperatorAbortRequest struct {
	SubmitID string `json:"submit_id"`
	Reason   string `json:"reason"`
}

type OperatorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func writeOperatorError(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: msg})
}

// operatorVerdictHandler applies a forced verdict to a session that
// cannot advance on its own.
func operatorVerdictHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeOperatorError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req OperatorVerdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOperatorError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SubmitID == "" {
		writeOperatorError(w, http.StatusBadRequest, "submit_id required")
		return
	}
	verdict, err := judge.ParseVerdict(req.Verdict)
	if err != nil {
		writeOperatorError(w, http.StatusBadRequest, err.Error())
		return
	}

	if sessions == nil {
		writeOperatorError(w, http.StatusServiceUnavailable, "sessions not available")
		return
	}
	s := sessions.Get(req.SubmitID)
	if s == nil {
		writeOperatorError(w, http.StatusNotFound, "submit not found")
		return
	}

	if err := s.ForceVerdict(verdict, req.Operator); err != nil {
		writeOperatorError(w, http.StatusConflict, err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(OperatorResponse{OK: true})
}

// operatorAbortHandler fails a session on operator request.
func operatorAbortHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeOperatorError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req OperatorAbortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOperatorError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SubmitID == "" {
		writeOperatorError(w, http.StatusBadRequest, "submit_id required")
		return
	}

	if sessions == nil {
		writeOperatorError(w, http.StatusServiceUnavailable, "sessions not available")
		return
	}
	s := sessions.Get(req.SubmitID)
	if s == nil {
		writeOperatorError(w, http.StatusNotFound, "submit not found")
		return
	}

	// Abort returns the failure it records; the call itself succeeded.
	_ = s.Abort(req.Reason)
	_ = json.NewEncoder(w).Encode(OperatorResponse{OK: true})
}

// NewMux builds the API routing table.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", uiHandler)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/events", RequireAnyRole(eventsHandler))
	mux.HandleFunc("/events/log", RequireAnyRole(eventLogHandler))
	mux.HandleFunc("/events/ws", wsEventsHandler)
	mux.HandleFunc("/sessions", RequireAnyRole(sessionsHandler))
	mux.HandleFunc("/submit", RequireAdmin(submitHandlerEndpoint))
	mux.HandleFunc("/report", RequireAnyRole(reportHandler))
	mux.HandleFunc("/operator/verdict", RequireAnyRole(operatorVerdictHandler))
	mux.HandleFunc("/operator/abort", RequireAnyRole(operatorAbortHandler))
	return mux
}

// ListenAndServe starts the API server on the given port, with TLS
// when certificates are configured. It blocks until the server exits.
func ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: NewMux(),
	}

	if cfg := LoadTLSConfig(); cfg != nil {
		srv.TLSConfig = cfg
		log.Printf("API listening on %s (TLS)\n", addr)
		return srv.ListenAndServeTLS("", "")
	}

	log.Printf("API listening on %s\n", addr)
	return srv.ListenAndServe()
}

// Start starts the API server in a goroutine.
// Errors are logged but do not stop the caller.
func Start(port int) {
	go func() {
		if err := ListenAndServe(port); err != nil {
			log.Printf("api server error: %v", err)
		}
	}()
}
