// Package broker speaks the wire protocol between the judge keeper
// and the judge workers that actually compile and run submissions.
// Requests and results travel as JSON over MQTT; both directions carry
// a shared-secret hash tied to the submit id.
package broker

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/baca2-project/judgekeeper/internal/judge"
)

// ProtocolVersion is the current request/result schema version.
const ProtocolVersion = 1

// SubmitRequest asks a judge worker to evaluate one submission stage.
type SubmitRequest struct {
	Version     int    `json:"version"`
	PassHash    string `json:"pass_hash"`
	SubmitID    string `json:"submit_id"`
	Node        string `json:"node"`
	PackagePath string `json:"package_path"`
	CommitID    string `json:"commit_id"`
	SubmitPath  string `json:"submit_path"`
}

// TestResult is the outcome of a single test case.
type TestResult struct {
	Name     string        `json:"name"`
	Verdict  judge.Verdict `json:"verdict"`
	TimeReal float64       `json:"time_real"`
	TimeCPU  float64       `json:"time_cpu"`
	Memory   int64         `json:"runtime_memory"`
}

// SetResult groups test results of one test set.
type SetResult struct {
	Name  string                `json:"name"`
	Tests map[string]TestResult `json:"tests"`
}

// JudgeResult is a worker's answer to a SubmitRequest. The node field
// names the graph node the result belongs to.
type JudgeResult struct {
	Version  int                  `json:"version"`
	PassHash string               `json:"pass_hash"`
	SubmitID string               `json:"submit_id"`
	Node     string               `json:"node"`
	Verdict  judge.Verdict        `json:"verdict"`
	Results  map[string]SetResult `json:"results,omitempty"`
}

// ErrorReport is a worker's notice that a stage could not be judged at
// all, as opposed to a FAIL verdict.
type ErrorReport struct {
	Version  int    `json:"version"`
	PassHash string `json:"pass_hash"`
	SubmitID string `json:"submit_id"`
	Node     string `json:"node,omitempty"`
	Error    string `json:"error"`
}

var submitIDPattern = regexp.MustCompile(`^([-A-Za-z0-9.,_]+)___([0-9]+)$`)

// MakeSubmitID composes a submit id from a course identifier and a
// submission number. The course part may not contain the "___"
// separator.
func MakeSubmitID(course string, number int) (string, error) {
	if number < 0 {
		return "", fmt.Errorf("negative submit number: %d", number)
	}
	id := fmt.Sprintf("%s___%d", course, number)
	if !submitIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid course identifier: %q", course)
	}
	return id, nil
}

// SplitSubmitID breaks a submit id back into course and number.
func SplitSubmitID(submitID string) (course string, number int, err error) {
	m := submitIDPattern.FindStringSubmatch(submitID)
	if m == nil {
		return "", 0, fmt.Errorf("malformed submit id: %q", submitID)
	}
	number, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("malformed submit number in %q: %w", submitID, err)
	}
	return m[1], number, nil
}

// MakeHash derives the pass hash both sides attach to messages of one
// submission.
func MakeHash(password, submitID string) string {
	sum := sha256.Sum256([]byte(password + "___" + submitID))
	return hex.EncodeToString(sum[:])
}

// VerifyHash checks a received pass hash in constant time.
func VerifyHash(password, submitID, hash string) bool {
	want := MakeHash(password, submitID)
	return subtle.ConstantTimeCompare([]byte(want), []byte(hash)) == 1
}

// ParseJudgeResult decodes and authenticates a worker result.
func ParseJudgeResult(data []byte, password string) (*JudgeResult, error) {
	var result JudgeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("invalid result JSON: %w", err)
	}
	if result.Version != ProtocolVersion {
		return nil, fmt.Errorf("unsupported result version: %d", result.Version)
	}
	if result.SubmitID == "" {
		return nil, fmt.Errorf("result without submit_id")
	}
	if !VerifyHash(password, result.SubmitID, result.PassHash) {
		return nil, fmt.Errorf("pass hash mismatch for submit %s", result.SubmitID)
	}
	return &result, nil
}

// ParseErrorReport decodes and authenticates a worker error report.
func ParseErrorReport(data []byte, password string) (*ErrorReport, error) {
	var report ErrorReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("invalid error report JSON: %w", err)
	}
	if report.Version != ProtocolVersion {
		return nil, fmt.Errorf("unsupported error report version: %d", report.Version)
	}
	if report.SubmitID == "" {
		return nil, fmt.Errorf("error report without submit_id")
	}
	if !VerifyHash(password, report.SubmitID, report.PassHash) {
		return nil, fmt.Errorf("pass hash mismatch for submit %s", report.SubmitID)
	}
	return &report, nil
}
