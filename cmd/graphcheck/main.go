// Command graphcheck lints judging graphs before deployment. It loads
// a YAML graph definition or a packed sequence.judge blob, runs the
// integrity check and prints the report as JSON. Exit status 1 means
// the graph is unsafe to deploy.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/baca2-project/judgekeeper/internal/graphdef"
	"github.com/baca2-project/judgekeeper/internal/judge"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: graphcheck [-format yaml|packed] <graph file>\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func loadGraph(path, format string) (*judge.Graph, error) {
	if format == "" {
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "packed"
		}
	}

	switch format {
	case "yaml":
		return graphdef.Load(path)
	case "packed":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return judge.Unpack(data)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func main() {
	format := flag.String("format", "", "graph file format: yaml or packed (default: by extension)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
	}
	path := flag.Arg(0)

	g, err := loadGraph(path, *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "graphcheck: %v\n", err)
		os.Exit(2)
	}

	report, err := g.CheckIntegrity()
	if err != nil {
		fmt.Fprintf(os.Stderr, "graphcheck: %v\n", err)
		os.Exit(2)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "graphcheck: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(out))

	if !report.NoErrors() {
		os.Exit(1)
	}
}
