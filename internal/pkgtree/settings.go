// Package pkgtree manages the on-disk layout of judging packages: a
// directory per package commit holding a YAML config, task
// descriptions, a serialized judging graph and test sets with their
// test cases. Settings values stay loosely typed the way YAML decodes
// them; validation rules live alongside the defaults.
package pkgtree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/baca2-project/judgekeeper/internal/validators"
)

// Settings is a YAML-backed key/value store for one directory. Keys
// come from the defaults; values from the directory's config file
// override them. Set writes through to disk immediately.
type Settings struct {
	dir    string
	file   string
	values map[string]any
}

// LoadSettings reads dir's config file (config.yml or config.yaml) and
// merges it over the given defaults. A missing config file yields the
// defaults unchanged.
func LoadSettings(dir string, defaults map[string]any) (*Settings, error) {
	file := configFile(dir)
	loaded := map[string]any{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading settings %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("parsing settings %s: %w", file, err)
		}
	} else {
		file = filepath.Join(dir, "config.yml")
	}
	return &Settings{
		dir:    dir,
		file:   file,
		values: mergeSettings(defaults, loaded),
	}, nil
}

func configFile(dir string) string {
	for _, name := range []string{"config.yml", "config.yaml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// mergeSettings keeps the default keys and takes the override value
// wherever one is present and non-nil. Keys outside the defaults are
// carried along untouched.
func mergeSettings(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		if v == nil {
			continue
		}
		merged[k] = v
	}
	return merged
}

// Dir returns the directory the settings belong to.
func (s *Settings) Dir() string { return s.dir }

// Get returns the value stored under key.
func (s *Settings) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value under key when it is a string, otherwise
// the empty string.
func (s *Settings) GetString(key string) string {
	v, _ := s.values[key].(string)
	return v
}

// Set stores a value and saves the config file.
func (s *Settings) Set(key string, value any) error {
	s.values[key] = value
	return s.Save()
}

// Delete removes a key and saves the config file.
func (s *Settings) Delete(key string) error {
	delete(s.values, key)
	return s.Save()
}

// Items returns a copy of all current values.
func (s *Settings) Items() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Keys returns the setting keys in sorted order.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the current values back to the config file.
func (s *Settings) Save() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.WriteFile(s.file, data, 0o644); err != nil {
		return fmt.Errorf("writing settings %s: %w", s.file, err)
	}
	return nil
}

// Validate checks every key that has a rule. A key passes when at
// least one of its validators accepts the stored value; keys without a
// rule are ignored.
func (s *Settings) Validate(rules map[string][]validators.Validator) bool {
	for key, rule := range rules {
		if len(rule) == 0 {
			continue
		}
		if !validators.Any(rule...).Validate(s.values[key]) {
			return false
		}
	}
	return true
}

// EnsureFile creates an empty file under the settings directory if it
// does not exist yet.
func (s *Settings) EnsureFile(name string) error {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
