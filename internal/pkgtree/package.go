package pkgtree

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/baca2-project/judgekeeper/internal/archive"
	"github.com/baca2-project/judgekeeper/internal/judge"
	"github.com/baca2-project/judgekeeper/internal/validators"
)

// Limits a package config may not exceed.
const (
	MaxSubmitMemory = "10G"
	MaxSubmitTime   = 600
	MaxCPUs         = 16
)

// GraphFileName is the serialized judging graph inside a commit.
const GraphFileName = "sequence.judge"

// DocExtensions lists the accepted task-description formats, in
// preference order.
var DocExtensions = []string{"pdf", "md", "html", "txt"}

// SupportedExtensions lists the source-file extensions submissions may
// use. The hosting service configures this at startup.
var SupportedExtensions = []any{"cpp", "c", "py"}

func packageDefaults() map[string]any {
	return map[string]any{
		"title":             "<no-name>",
		"points":            0,
		"memory_limit":      "512M",
		"time_limit":        10,
		"allowedExtensions": "cpp",
		"hinter":            nil,
		"checker":           nil,
		"test_generator":    nil,
		"network":           false,
		"cpus":              1,
	}
}

func packageValidation() map[string][]validators.Validator {
	return map[string][]validators.Validator{
		"title":             {validators.IsString},
		"points":            {validators.IsNumber},
		"memory_limit":      {validators.MemorySizeMax(MaxSubmitMemory)},
		"time_limit":        {validators.NumberBetween(0, MaxSubmitTime)},
		"allowedExtensions": {validators.ListOf(validators.OneOf(SupportedExtensions...))},
		"hinter":            {validators.IsNil, validators.IsPath},
		"checker":           {validators.IsNil, validators.IsPath},
		"test_generator":    {validators.IsNil, validators.IsPath},
		"network":           {validators.IsBool},
		"cpus":              {validators.NumberBetween(1, MaxCPUs)},
	}
}

// Package is one commit of a judging package on disk. The layout under
// CommitPath is:
//
//	config.yml       package settings
//	doc.<ext>        task description
//	sequence.judge   serialized judging graph
//	tests/<set>/     test sets
//	build/<name>/    prepared build directories
type Package struct {
	*Settings
	root   string
	commit string
	sets   []*TestSet
}

// OpenPackage loads the package commit rooted at root/<commit>.
func OpenPackage(root, commit string) (*Package, error) {
	p := &Package{root: root, commit: commit}
	dir := p.CommitPath()
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("opening package commit %s: %w", dir, err)
	}

	settings, err := LoadSettings(dir, packageDefaults())
	if err != nil {
		return nil, err
	}
	p.Settings = settings

	if err := p.reloadSets(); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateFromZip extracts a package archive into a new commit directory
// and opens it. With overwrite set an existing commit is replaced. On
// any failure the partially created tree is removed and a
// CreationError returned.
func CreateFromZip(root, commit, zipPath string, overwrite bool) (*Package, error) {
	dir := filepath.Join(root, commit)
	if _, err := os.Stat(dir); err == nil {
		if !overwrite {
			return nil, &PackageExistsError{Path: dir}
		}
		if err := os.RemoveAll(dir); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &CreationError{Path: dir, Err: err}
	}
	if err := archive.Extract(zipPath, dir, true); err != nil {
		os.RemoveAll(dir)
		return nil, &CreationError{Path: dir, Err: err}
	}

	p, err := OpenPackage(root, commit)
	if err != nil {
		os.RemoveAll(dir)
		return nil, &CreationError{Path: dir, Err: err}
	}
	return p, nil
}

// Root returns the directory that holds all commits of this package.
func (p *Package) Root() string { return p.root }

// Commit returns the commit identifier.
func (p *Package) Commit() string { return p.commit }

// CommitPath returns the directory of this commit.
func (p *Package) CommitPath() string { return filepath.Join(p.root, p.commit) }

// Title returns the package title from settings.
func (p *Package) Title() string { return p.GetString("title") }

func (p *Package) testsDir() string { return filepath.Join(p.CommitPath(), "tests") }

func (p *Package) reloadSets() error {
	p.sets = nil
	entries, err := os.ReadDir(p.testsDir())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, err := OpenTestSet(filepath.Join(p.testsDir(), e.Name()))
		if err != nil {
			return err
		}
		p.sets = append(p.sets, ts)
	}
	sort.Slice(p.sets, func(i, j int) bool { return p.sets[i].Name() < p.sets[j].Name() })
	return nil
}

// Sets returns the package's test sets sorted by name.
func (p *Package) Sets() []*TestSet { return p.sets }

// Set returns the test set with the given name.
func (p *Package) Set(name string) (*TestSet, error) {
	for _, ts := range p.sets {
		if ts.Name() == name {
			return ts, nil
		}
	}
	return nil, &NoSetError{Name: name}
}

// AddSet creates a new empty test set directory and returns it. An
// existing set of the same name is returned as is.
func (p *Package) AddSet(name string) (*TestSet, error) {
	if ts, err := p.Set(name); err == nil {
		return ts, nil
	}
	dir := filepath.Join(p.testsDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	ts, err := OpenTestSet(dir)
	if err != nil {
		return nil, err
	}
	p.sets = append(p.sets, ts)
	sort.Slice(p.sets, func(i, j int) bool { return p.sets[i].Name() < p.sets[j].Name() })
	return ts, nil
}

// DeleteSet removes a test set and its files.
func (p *Package) DeleteSet(name string) error {
	for i, ts := range p.sets {
		if ts.Name() == name {
			if err := os.RemoveAll(ts.Dir()); err != nil {
				return err
			}
			p.sets = append(p.sets[:i], p.sets[i+1:]...)
			return nil
		}
	}
	return &NoSetError{Name: name}
}

// DocPath returns the task description file for the given extension.
func (p *Package) DocPath(ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	ok := false
	for _, e := range DocExtensions {
		if e == ext {
			ok = true
			break
		}
	}
	if !ok {
		return "", &InvalidExtensionError{Ext: ext}
	}
	path := filepath.Join(p.CommitPath(), "doc."+ext)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// DocExtension returns the first present task-description extension,
// or empty when the package carries no description.
func (p *Package) DocExtension() string {
	for _, ext := range DocExtensions {
		if _, err := os.Stat(filepath.Join(p.CommitPath(), "doc."+ext)); err == nil {
			return ext
		}
	}
	return ""
}

// GraphPath returns the serialized judging graph file of this commit.
func (p *Package) GraphPath() string {
	return filepath.Join(p.CommitPath(), GraphFileName)
}

// LoadGraph reads and decodes the commit's judging graph.
func (p *Package) LoadGraph() (*judge.Graph, error) {
	data, err := os.ReadFile(p.GraphPath())
	if err != nil {
		return nil, fmt.Errorf("reading judging graph: %w", err)
	}
	g, err := judge.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("decoding judging graph %s: %w", p.GraphPath(), err)
	}
	return g, nil
}

// SaveGraph encodes and writes the commit's judging graph.
func (p *Package) SaveGraph(g *judge.Graph) error {
	data, err := g.Pack()
	if err != nil {
		return fmt.Errorf("encoding judging graph: %w", err)
	}
	if err := os.WriteFile(p.GraphPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing judging graph: %w", err)
	}
	return nil
}

// Check validates the package settings and every test set.
func (p *Package) Check() bool {
	if !p.Validate(packageValidation()) {
		return false
	}
	for _, ts := range p.sets {
		if !ts.Check() {
			return false
		}
	}
	return true
}

// BuildPath returns the directory for a named build.
func (p *Package) BuildPath(name string) string {
	return filepath.Join(p.CommitPath(), "build", name)
}

// HasBuild reports whether a named build directory exists.
func (p *Package) HasBuild(name string) bool {
	info, err := os.Stat(p.BuildPath(name))
	return err == nil && info.IsDir()
}

// PrepareBuild creates a build directory and returns its path.
func (p *Package) PrepareBuild(name string) (string, error) {
	dir := p.BuildPath(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// DeleteBuild removes a named build, or every build when name is
// empty.
func (p *Package) DeleteBuild(name string) error {
	if name == "" {
		return os.RemoveAll(filepath.Join(p.CommitPath(), "build"))
	}
	return os.RemoveAll(p.BuildPath(name))
}

// MakeCommit copies this commit's tree into a new commit directory and
// opens it. Build directories are not carried over.
func (p *Package) MakeCommit(newCommit string) (*Package, error) {
	dest := filepath.Join(p.root, newCommit)
	if _, err := os.Stat(dest); err == nil {
		return nil, &PackageExistsError{Path: dest}
	}
	if err := copyTree(p.CommitPath(), dest, "build"); err != nil {
		os.RemoveAll(dest)
		return nil, &CreationError{Path: dest, Err: err}
	}
	return OpenPackage(p.root, newCommit)
}

// Remove deletes this commit's tree from disk.
func (p *Package) Remove() error {
	return os.RemoveAll(p.CommitPath())
}

func copyTree(src, dest string, skip ...string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		for _, s := range skip {
			if rel == s || strings.HasPrefix(rel, s+string(os.PathSeparator)) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
