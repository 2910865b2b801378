// Package archive extracts uploaded package archives. Extraction guards
// against zip bombs and path traversal, and flattens the single
// top-level directory most archive tools produce.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BombRatio is the maximum allowed uncompressed/compressed size ratio.
const BombRatio = 20

// UnsafeArchiveError indicates an archive that failed a safety check.
type UnsafeArchiveError struct {
	Path   string
	Reason string
}

func (e *UnsafeArchiveError) Error() string {
	return fmt.Sprintf("unsafe archive %s: %s", e.Path, e.Reason)
}

// Sizes returns the compressed and uncompressed byte totals of a zip.
func Sizes(zipPath string) (compressed, uncompressed int64, err error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	for _, f := range r.File {
		compressed += int64(f.CompressedSize64)
		uncompressed += int64(f.UncompressedSize64)
	}
	return compressed, uncompressed, nil
}

// CheckBomb verifies the archive's expansion ratio stays under BombRatio.
func CheckBomb(zipPath string) error {
	compressed, uncompressed, err := Sizes(zipPath)
	if err != nil {
		return err
	}
	if compressed == 0 {
		if uncompressed > 0 {
			return &UnsafeArchiveError{Path: zipPath, Reason: "zero compressed size"}
		}
		return nil
	}
	if float64(uncompressed)/float64(compressed) > BombRatio {
		return &UnsafeArchiveError{Path: zipPath, Reason: "zip bomb detected"}
	}
	return nil
}

// Extract unpacks the archive into dest. The bomb check runs first.
// When flattenTop is true and the archive contains exactly one top-level
// directory, its contents are moved up so dest holds the package tree
// directly.
func Extract(zipPath, dest string, flattenTop bool) error {
	if err := CheckBomb(zipPath); err != nil {
		return err
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractFile(f, dest); err != nil {
			return err
		}
	}

	if flattenTop {
		return Flatten(dest)
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	target := filepath.Join(dest, f.Name)
	// Reject entries that would escape dest.
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return &UnsafeArchiveError{Path: f.Name, Reason: "path escapes destination"}
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

// Flatten moves the contents of a lone top-level directory up into dir,
// repeating while the layer below is again a single directory.
func Flatten(dir string) error {
	for {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		if len(entries) != 1 || !entries[0].IsDir() {
			return nil
		}

		// Rename first so a child with the same name cannot collide.
		tmp := filepath.Join(dir, ".flatten")
		if err := os.Rename(filepath.Join(dir, entries[0].Name()), tmp); err != nil {
			return err
		}
		innerEntries, err := os.ReadDir(tmp)
		if err != nil {
			return err
		}
		for _, e := range innerEntries {
			if err := os.Rename(filepath.Join(tmp, e.Name()), filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
		if err := os.Remove(tmp); err != nil {
			return err
		}
	}
}
