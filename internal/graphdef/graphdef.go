// Package graphdef loads judging graphs from the YAML authoring
// format package authors write by hand. The packed binary form inside
// a package commit is produced from a built definition; this package
// is the human-editable side of that pipeline.
package graphdef

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/baca2-project/judgekeeper/internal/broker"
	"github.com/baca2-project/judgekeeper/internal/judge"
)

// Definition is the YAML form of a judging graph.
type Definition struct {
	Version int       `yaml:"version"`
	Start   string    `yaml:"start"`
	Nodes   []NodeDef `yaml:"nodes"`
	Edges   []EdgeDef `yaml:"edges"`
}

// NodeDef declares one graph node. Type "broker" nodes dispatch to a
// judge worker; type "end" nodes terminate the graph with a meaning.
type NodeDef struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Worker     string `yaml:"worker,omitempty"`
	Capability string `yaml:"capability,omitempty"`
	Meaning    string `yaml:"meaning,omitempty"`
}

// EdgeDef declares one verdict-labeled edge.
type EdgeDef struct {
	From string `yaml:"from"`
	On   string `yaml:"on"`
	To   string `yaml:"to"`
}

// Parse decodes and validates a definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing graph definition: %w", err)
	}
	if def.Version != 1 {
		return nil, fmt.Errorf("unsupported graph definition version: %d", def.Version)
	}
	if def.Start == "" {
		return nil, fmt.Errorf("graph definition needs a start node")
	}
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("graph definition has no nodes")
	}
	return &def, nil
}

// Build turns a definition into a judging graph.
func (d *Definition) Build() (*judge.Graph, error) {
	g := judge.New()
	byName := make(map[string]judge.Node, len(d.Nodes))

	for _, nd := range d.Nodes {
		var node judge.Node
		switch nd.Type {
		case "broker":
			if nd.Worker == "" {
				return nil, fmt.Errorf("node %s: broker nodes need a worker", nd.Name)
			}
			node = broker.NewNode(nd.Name, nd.Worker, nd.Capability)
		case "end":
			meaning, err := judge.ParseVerdict(nd.Meaning)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", nd.Name, err)
			}
			node = judge.NewEndNode(nd.Name, meaning)
		default:
			return nil, fmt.Errorf("node %s: unknown type %q", nd.Name, nd.Type)
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
		byName[nd.Name] = node
	}

	for _, ed := range d.Edges {
		from, ok := byName[ed.From]
		if !ok {
			return nil, fmt.Errorf("edge from unknown node %q", ed.From)
		}
		to, ok := byName[ed.To]
		if !ok {
			return nil, fmt.Errorf("edge to unknown node %q", ed.To)
		}
		label, err := judge.ParseVerdict(ed.On)
		if err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", ed.From, ed.To, err)
		}
		if err := g.AddConnection(from, to, label); err != nil {
			return nil, err
		}
	}

	start, ok := byName[d.Start]
	if !ok {
		return nil, fmt.Errorf("start node %q is not declared", d.Start)
	}
	if err := g.SetStartNode(start); err != nil {
		return nil, err
	}
	return g, nil
}

// Load reads a definition file and builds the graph.
func Load(path string) (*judge.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	g, err := def.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
