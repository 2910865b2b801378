package pkgtree

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/baca2-project/judgekeeper/internal/validators"
)

func setDefaults() map[string]any {
	return map[string]any{
		"name":           "_unnamed",
		"weight":         10,
		"points":         0,
		"memory_limit":   "512M",
		"time_limit":     10,
		"checker":        nil,
		"test_generator": nil,
		"tests":          nil,
		"makefile":       nil,
	}
}

func setValidation() map[string][]validators.Validator {
	return map[string][]validators.Validator{
		"name":           {validators.IsString},
		"weight":         {validators.IsNumber},
		"points":         {validators.IsNumber},
		"memory_limit":   {validators.MemorySizeMax(MaxSubmitMemory)},
		"time_limit":     {validators.NumberBetween(0, MaxSubmitTime)},
		"checker":        {validators.IsNil, validators.IsPath},
		"test_generator": {validators.IsNil, validators.IsPath},
		"makefile":       {validators.IsNil, validators.IsPath},
	}
}

// TestSet is a directory of test cases sharing settings. Cases are
// declared in the config's tests mapping, discovered from <name>.in
// and <name>.out file pairs, or both.
type TestSet struct {
	*Settings
	tests []*TestCase
}

// OpenTestSet loads the test set stored in dir. The set name defaults
// to the directory name. Test cases found on disk but absent from the
// config are added with default settings.
func OpenTestSet(dir string) (*TestSet, error) {
	settings, err := LoadSettings(dir, setDefaults())
	if err != nil {
		return nil, err
	}
	ts := &TestSet{Settings: settings}
	if ts.GetString("name") == "_unnamed" {
		ts.values["name"] = filepath.Base(dir)
	}

	declared := ts.declaredTests()
	for name, overrides := range declared {
		ts.tests = append(ts.tests, newTestCase(ts, name, overrides))
	}

	discovered, err := discoverTests(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range discovered {
		if _, ok := declared[name]; ok {
			continue
		}
		ts.tests = append(ts.tests, newTestCase(ts, name, nil))
	}

	ts.sortTests()
	return ts, nil
}

// Name returns the set name.
func (ts *TestSet) Name() string { return ts.GetString("name") }

func (ts *TestSet) sortTests() {
	sort.Slice(ts.tests, func(i, j int) bool { return ts.tests[i].Name() < ts.tests[j].Name() })
}

// declaredTests reads the config's tests mapping into per-case
// override maps keyed by test name.
func (ts *TestSet) declaredTests() map[string]map[string]any {
	out := map[string]map[string]any{}
	raw, _ := ts.Get("tests")
	m, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	for key, v := range m {
		overrides, _ := v.(map[string]any)
		name := key
		if n, ok := overrides["name"].(string); ok {
			name = n
		}
		out[name] = overrides
	}
	return out
}

// discoverTests finds test names from paired <name>.in and <name>.out
// files in dir.
func discoverTests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	inputs := map[string]bool{}
	outputs := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(e.Name(), ".in"):
			inputs[strings.TrimSuffix(e.Name(), ".in")] = true
		case strings.HasSuffix(e.Name(), ".out"):
			outputs[strings.TrimSuffix(e.Name(), ".out")] = true
		}
	}
	var names []string
	for name := range inputs {
		if outputs[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Tests returns the set's test cases sorted by name.
func (ts *TestSet) Tests() []*TestCase { return ts.tests }

// Test returns the test case with the given name.
func (ts *TestSet) Test(name string) (*TestCase, error) {
	for _, tc := range ts.tests {
		if tc.Name() == name {
			return tc, nil
		}
	}
	return nil, &NoTestError{Name: name}
}

// AddTest creates a test case with empty input and output files.
func (ts *TestSet) AddTest(name string) (*TestCase, error) {
	if _, err := ts.Test(name); err == nil {
		return nil, &TestExistsError{Name: name}
	}
	if err := ts.EnsureFile(name + ".in"); err != nil {
		return nil, err
	}
	if err := ts.EnsureFile(name + ".out"); err != nil {
		return nil, err
	}
	tc := newTestCase(ts, name, nil)
	ts.tests = append(ts.tests, tc)
	ts.sortTests()
	return tc, nil
}

// DeleteTest removes a test case's files and config entry.
func (ts *TestSet) DeleteTest(name string) error {
	idx := -1
	for i, tc := range ts.tests {
		if tc.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NoTestError{Name: name}
	}

	for _, ext := range []string{".in", ".out"} {
		path := filepath.Join(ts.Dir(), name+ext)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	ts.tests = append(ts.tests[:idx], ts.tests[idx+1:]...)
	return ts.removeDeclared(name)
}

func (ts *TestSet) removeDeclared(name string) error {
	raw, _ := ts.Get("tests")
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	changed := false
	for key, v := range m {
		overrides, _ := v.(map[string]any)
		declared := key
		if n, ok := overrides["name"].(string); ok {
			declared = n
		}
		if declared == name {
			delete(m, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return ts.Set("tests", m)
}

// MoveTest transfers a test case's files and settings to another set.
func (ts *TestSet) MoveTest(name string, to *TestSet) error {
	tc, err := ts.Test(name)
	if err != nil {
		return err
	}
	if _, err := to.Test(name); err == nil {
		return &TestExistsError{Name: name}
	}

	for _, ext := range []string{".in", ".out"} {
		src := filepath.Join(ts.Dir(), name+ext)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(src, filepath.Join(to.Dir(), name+ext)); err != nil {
			return err
		}
	}

	moved := newTestCase(to, name, tc.overrides)
	to.tests = append(to.tests, moved)
	to.sortTests()
	for i, existing := range ts.tests {
		if existing.Name() == name {
			ts.tests = append(ts.tests[:i], ts.tests[i+1:]...)
			break
		}
	}
	return ts.removeDeclared(name)
}

// Check validates the set settings and every test case.
func (ts *TestSet) Check() bool {
	if !ts.Validate(setValidation()) {
		return false
	}
	for _, tc := range ts.tests {
		if !tc.Check() {
			return false
		}
	}
	return true
}
