package pkgtree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/baca2-project/judgekeeper/internal/validators"
)

func TestLoadSettingsMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	config := "title: sums\ntime_limit: 30\nchecker: null\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(dir, packageDefaults())
	if err != nil {
		t.Fatal(err)
	}

	if got := s.GetString("title"); got != "sums" {
		t.Errorf("title = %q, want sums", got)
	}
	if v, _ := s.Get("time_limit"); v != 30 {
		t.Errorf("time_limit = %v, want 30", v)
	}
	// Untouched keys keep their defaults; explicit nulls do too.
	if got := s.GetString("memory_limit"); got != "512M" {
		t.Errorf("memory_limit = %q, want default 512M", got)
	}
	if v, ok := s.Get("checker"); !ok || v != nil {
		t.Errorf("checker = %v, want nil default", v)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(t.TempDir(), packageDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if got := s.GetString("title"); got != "<no-name>" {
		t.Errorf("title = %q, want placeholder default", got)
	}
}

func TestSetWritesThrough(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadSettings(dir, packageDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("points", 25); err != nil {
		t.Fatal(err)
	}

	reloaded, err := LoadSettings(dir, packageDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := reloaded.Get("points"); v != 25 {
		t.Errorf("points after reload = %v, want 25", v)
	}
}

func TestValidateRules(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadSettings(dir, packageDefaults())
	if err != nil {
		t.Fatal(err)
	}

	if !s.Validate(packageValidation()) {
		t.Error("defaults should validate")
	}

	s.values["memory_limit"] = "999G"
	if s.Validate(packageValidation()) {
		t.Error("memory limit over the cap should fail validation")
	}
	s.values["memory_limit"] = "1G"

	s.values["time_limit"] = MaxSubmitTime + 1
	if s.Validate(packageValidation()) {
		t.Error("time limit over the cap should fail validation")
	}
}

func TestValidateIgnoresUnruledKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadSettings(dir, map[string]any{"custom": 1})
	if err != nil {
		t.Fatal(err)
	}
	rules := map[string][]validators.Validator{
		"other": {validators.IsString},
	}
	// "other" is absent, so nil must pass or fail per its rule only.
	if s.Validate(rules) {
		t.Error("missing ruled key should fail its rule")
	}
	if !s.Validate(map[string][]validators.Validator{}) {
		t.Error("empty rule set should always pass")
	}
}
