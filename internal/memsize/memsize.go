// Package memsize converts between human-readable memory sizes
// ("512M", "10G") and byte counts. Package and test-set settings use the
// string form; resource checks need bytes.
package memsize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var units = []struct {
	Suffix string
	Bytes  int64
}{
	{"B", 1},
	{"K", 1024},
	{"M", 1024 * 1024},
	{"G", 1024 * 1024 * 1024},
	{"T", 1024 * 1024 * 1024 * 1024},
}

// Parse converts a size string with a one-letter unit suffix into bytes.
// A bare number is taken as bytes.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty memory size")
	}

	suffix := s[len(s)-1:]
	numPart := s[:len(s)-1]
	var unit int64 = 1
	found := false
	for _, u := range units {
		if u.Suffix == suffix {
			unit = u.Bytes
			found = true
			break
		}
	}
	if !found {
		numPart = s
	}

	value, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q: %w", s, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative memory size %q", s)
	}
	if value > math.MaxInt64/unit {
		return 0, fmt.Errorf("memory size %q overflows", s)
	}
	return value * unit, nil
}

// Format renders a byte count with the largest unit it divides into,
// using two decimals when the division is not exact.
func Format(bytes int64) string {
	chosen := units[0]
	for _, u := range units {
		if bytes >= u.Bytes {
			chosen = u
		}
	}
	if bytes%chosen.Bytes == 0 {
		return fmt.Sprintf("%d%s", bytes/chosen.Bytes, chosen.Suffix)
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/float64(chosen.Bytes), chosen.Suffix)
}
