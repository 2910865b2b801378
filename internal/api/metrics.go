package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/baca2-project/judgekeeper/internal/events"
	"github.com/baca2-project/judgekeeper/internal/version"
)

// Metrics state
var (
	metricsState = &MetricsState{}
)

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu           sync.RWMutex
	startTime    time.Time
	instanceName string
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
}

// SetInstanceName sets the keeper instance name for metrics labels.
func SetInstanceName(name string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.instanceName = name
}

// GetInstanceName returns the current instance name.
func GetInstanceName() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.instanceName
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Gather metrics
	metricsState.mu.RLock()
	startTime := metricsState.startTime
	instanceName := metricsState.instanceName
	metricsState.mu.RUnlock()

	uptime := time.Since(startTime).Seconds()
	eventsTotal := events.TotalCount()

	readiness.mu.RLock()
	engineReady := readiness.engineReady
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	wsClients := events.SubscriberCount()

	sessionsActive := 0
	if sessions != nil {
		sessionsActive = sessions.Count()
	}

	engineReadyVal := 0
	if engineReady {
		engineReadyVal = 1
	}

	mqttConnectedVal := 0
	if mqttConnected {
		mqttConnectedVal = 1
	}

	postgresConnectedVal := 0
	if postgresConnected {
		postgresConnectedVal = 1
	}

	// Get hostname for instance label
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	// Build Prometheus text format response
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper to write metric with optional labels
	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		if labels != "" {
			fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
		} else {
			fmt.Fprintf(w, "%s %v\n", name, value)
		}
	}

	// Common labels
	labels := fmt.Sprintf(`keeper="%s",instance="%s",version="%s"`, instanceName, hostname, version.Version)

	// Uptime
	writeMetric("baca_uptime_seconds", "gauge",
		"Number of seconds since the keeper started", uptime, labels)

	// Engine ready
	writeMetric("baca_engine_ready", "gauge",
		"Whether the judging engine is ready (1) or not (0)", engineReadyVal, labels)

	// Events total
	writeMetric("baca_events_total", "counter",
		"Total number of events emitted since startup", eventsTotal, labels)

	// MQTT connected
	writeMetric("baca_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", mqttConnectedVal, labels)

	// Postgres connected
	writeMetric("baca_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", postgresConnectedVal, labels)

	// WebSocket clients
	writeMetric("baca_ws_clients", "gauge",
		"Number of active WebSocket client connections", wsClients, labels)

	// Active judging sessions
	writeMetric("baca_sessions_active", "gauge",
		"Number of judging sessions currently tracked", sessionsActive, labels)
}
