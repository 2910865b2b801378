package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "pkg.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtract(t *testing.T) {
	path := writeZip(t, map[string]string{
		"config.yml":       "title: demo\n",
		"tests/set0/1.in":  "1 2\n",
		"tests/set0/1.out": "3\n",
	})

	dest := t.TempDir()
	if err := Extract(path, dest, true); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "config.yml"))
	if err != nil {
		t.Fatalf("config.yml missing: %v", err)
	}
	if string(data) != "title: demo\n" {
		t.Errorf("unexpected content: %q", data)
	}
	if _, err := os.Stat(filepath.Join(dest, "tests", "set0", "1.in")); err != nil {
		t.Errorf("nested file missing: %v", err)
	}
}

func TestExtractFlattensTopDirectory(t *testing.T) {
	path := writeZip(t, map[string]string{
		"mypackage/config.yml":      "title: demo\n",
		"mypackage/tests/set0/1.in": "1\n",
	})

	dest := t.TempDir()
	if err := Extract(path, dest, true); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "config.yml")); err != nil {
		t.Errorf("top directory not flattened: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "mypackage")); !os.IsNotExist(err) {
		t.Error("wrapper directory should be gone")
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	path := writeZip(t, map[string]string{
		"../escape.txt": "x",
	})

	dest := t.TempDir()
	err := Extract(path, dest, false)
	var unsafe *UnsafeArchiveError
	if !errors.As(err, &unsafe) {
		t.Fatalf("expected UnsafeArchiveError, got %v", err)
	}
}

func TestCheckBombRejectsHighRatio(t *testing.T) {
	// Highly repetitive content compresses far past the allowed ratio.
	big := bytes.Repeat([]byte("a"), 1<<20)
	path := writeZip(t, map[string]string{"blob.txt": string(big)})

	err := CheckBomb(path)
	var unsafe *UnsafeArchiveError
	if !errors.As(err, &unsafe) {
		t.Fatalf("expected UnsafeArchiveError, got %v", err)
	}

	// Extract must refuse before writing anything.
	dest := t.TempDir()
	if err := Extract(path, dest, false); err == nil {
		t.Error("extract should refuse a bomb")
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Error("bomb was partially extracted")
	}
}

func TestFlattenStopsAtMixedLayer(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "a"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Flatten(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a")); err != nil {
		t.Error("mixed layer should be untouched")
	}
}
