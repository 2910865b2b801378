package pkgtree

import (
	"os"
	"path/filepath"

	"github.com/baca2-project/judgekeeper/internal/validators"
)

func testValidation() map[string][]validators.Validator {
	return map[string][]validators.Validator{
		"name":         {validators.IsString},
		"points":       {validators.IsNumber},
		"memory_limit": {validators.MemorySizeMax(MaxSubmitMemory)},
		"time_limit":   {validators.NumberBetween(0, MaxSubmitTime)},
	}
}

// TestCase is one input/output pair inside a test set. Settings not
// overridden per case fall through to the owning set, so limits can be
// tightened for a single case without repeating the rest.
type TestCase struct {
	set       *TestSet
	name      string
	overrides map[string]any
}

func newTestCase(set *TestSet, name string, overrides map[string]any) *TestCase {
	if overrides == nil {
		overrides = map[string]any{}
	}
	return &TestCase{set: set, name: name, overrides: overrides}
}

// Name returns the test case name.
func (tc *TestCase) Name() string { return tc.name }

// Get resolves a setting, preferring the per-case override and falling
// back to the owning set.
func (tc *TestCase) Get(key string) (any, bool) {
	if key == "name" {
		return tc.name, true
	}
	if v, ok := tc.overrides[key]; ok && v != nil {
		return v, true
	}
	return tc.set.Get(key)
}

// InputPath returns the case's input file path and whether it exists.
func (tc *TestCase) InputPath() (string, bool) {
	path := filepath.Join(tc.set.Dir(), tc.name+".in")
	_, err := os.Stat(path)
	return path, err == nil
}

// OutputPath returns the case's expected-output file path and whether
// it exists.
func (tc *TestCase) OutputPath() (string, bool) {
	path := filepath.Join(tc.set.Dir(), tc.name+".out")
	_, err := os.Stat(path)
	return path, err == nil
}

// Check validates the resolved settings and requires both files to be
// present.
func (tc *TestCase) Check() bool {
	for key, rule := range testValidation() {
		v, _ := tc.Get(key)
		if !validators.Any(rule...).Validate(v) {
			return false
		}
	}
	if _, ok := tc.InputPath(); !ok {
		return false
	}
	if _, ok := tc.OutputPath(); !ok {
		return false
	}
	return true
}
