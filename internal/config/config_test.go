package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleInstanceYAML = `
version: 1
instance:
  id: keeper-1
  name: Main judging instance
network:
  api_port: 9090
judging:
  packages_dir: /var/lib/judgekeeper/packages
  submits_dir: /var/lib/judgekeeper/submits
workers:
  kolejka-1:
    kind: kolejka
    required: true
    capabilities: [cpp, py]
  kolejka-2:
    kind: kolejka
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instance.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadInstanceConfig(t *testing.T) {
	cfg, err := LoadInstanceConfig(writeConfig(t, sampleInstanceYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Instance.ID != "keeper-1" {
		t.Errorf("instance id = %q", cfg.Instance.ID)
	}
	if cfg.APIPort() != 9090 {
		t.Errorf("api port = %d, want 9090", cfg.APIPort())
	}
	if cfg.StuckAfterSec() != 600 {
		t.Errorf("stuck_after_sec default = %d, want 600", cfg.StuckAfterSec())
	}

	specs := cfg.WorkerSpecs()
	if len(specs) != 2 {
		t.Fatalf("worker specs = %d, want 2", len(specs))
	}
	spec := specs["kolejka-1"]
	if !spec.Required || spec.Kind != "kolejka" || len(spec.Capabilities) != 2 {
		t.Errorf("kolejka-1 spec = %+v", spec)
	}
	if specs["kolejka-2"].Required {
		t.Error("kolejka-2 should not be required")
	}
}

func TestLoadInstanceConfigRejectsBadInput(t *testing.T) {
	if _, err := LoadInstanceConfig(writeConfig(t, "version: 2\ninstance:\n  id: x\n")); err == nil {
		t.Error("unsupported version accepted")
	}
	if _, err := LoadInstanceConfig(writeConfig(t, "version: 1\ninstance:\n  name: anonymous\n")); err == nil {
		t.Error("missing instance id accepted")
	}
	if _, err := LoadInstanceConfig(writeConfig(t, "{broken")); err == nil {
		t.Error("malformed yaml accepted")
	}
	if _, err := LoadInstanceConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestAPIPortDefault(t *testing.T) {
	cfg := &InstanceConfig{}
	if cfg.APIPort() != 8080 {
		t.Errorf("default api port = %d, want 8080", cfg.APIPort())
	}
}
