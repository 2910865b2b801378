package broker

import (
	"encoding/json"
	"fmt"
)

// RegistrationPayload represents a v1 judge worker registration
// message. Workers announce themselves on a shared topic when they
// come online and repeat the message as a heartbeat.
type RegistrationPayload struct {
	Version int          `json:"version"`
	Worker  WorkerInfo   `json:"worker"`
	Topics  WorkerTopics `json:"topics"`
}

// WorkerInfo contains worker metadata.
type WorkerInfo struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Version      string   `json:"version"`
	UptimeMS     int64    `json:"uptime_ms"`
	HeartbeatSec int      `json:"heartbeat_sec"`
	Capabilities []string `json:"capabilities"`
}

// WorkerTopics defines the MQTT topics a worker listens and answers
// on.
type WorkerTopics struct {
	Submit  string `json:"submit"`
	Results string `json:"results"`
}

// ParseRegistration parses a registration payload from JSON bytes.
func ParseRegistration(data []byte) (*RegistrationPayload, error) {
	var payload RegistrationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid registration JSON: %w", err)
	}

	if payload.Version != 1 {
		return nil, fmt.Errorf("unsupported registration version: %d", payload.Version)
	}

	if payload.Worker.ID == "" {
		return nil, fmt.Errorf("worker.id is required")
	}

	return &payload, nil
}

// WorkerSpec defines an expected worker from the instance config.
type WorkerSpec struct {
	Kind         string
	Required     bool
	Capabilities []string
}

// ValidationResult contains a registration validation outcome.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateRegistration validates a registration payload against the
// configured worker specs.
func ValidateRegistration(payload *RegistrationPayload, specs map[string]WorkerSpec) *ValidationResult {
	result := &ValidationResult{Valid: true}

	spec, known := specs[payload.Worker.ID]
	if !known {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unrecognized worker: %s", payload.Worker.ID))
		return result
	}

	if payload.Worker.Kind != spec.Kind {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"worker %s: kind mismatch (expected %s, got %s)",
			payload.Worker.ID, spec.Kind, payload.Worker.Kind))
		result.Valid = false
	}

	for _, reqCap := range spec.Capabilities {
		if !containsString(payload.Worker.Capabilities, reqCap) {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"worker %s: missing capability %s", payload.Worker.ID, reqCap))
			result.Valid = false
		}
	}

	if payload.Topics.Submit == "" {
		result.Errors = append(result.Errors, fmt.Sprintf("worker %s: no submit topic", payload.Worker.ID))
		result.Valid = false
	}

	return result
}

// MissingRequired returns the ids of required workers that are absent
// from the given set of registered worker ids.
func MissingRequired(specs map[string]WorkerSpec, registered map[string]bool) []string {
	var missing []string
	for id, spec := range specs {
		if spec.Required && !registered[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
