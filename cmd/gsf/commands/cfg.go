package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/frontend/csharp"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file> [method]",
	Short: "Print the control flow graph of methods in a C# file",
	Long: `Builds the control flow graph of a method (named Class.Method, or just
Method when unambiguous) and prints it as text, Graphviz DOT or JSON.
Without a method, or with --all, every method of the file is printed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCFG,
}

func init() {
	cfgCmd.Flags().StringP("format", "f", "text", "Output format (text, dot or json)")
	cfgCmd.Flags().Bool("all", false, "Print every method of the file")
	RootCmd.AddCommand(cfgCmd)
}

type builtGraph struct {
	name  string
	graph *cfg.Graph
	err   error
}

func runCFG(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "text", "dot", "json":
	default:
		return fmt.Errorf("unknown format %q (use text, dot or json)", format)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, expected a file: %s", filePath)
	}
	if !strings.EqualFold(filepath.Ext(filePath), ".cs") {
		return fmt.Errorf("unsupported file type: %s (only .cs files supported)", filePath)
	}

	file, err := csharp.NewParser().ParseFile(cmd.Context(), filePath)
	if err != nil {
		return err
	}

	all, _ := cmd.Flags().GetBool("all")
	var procs []*syntax.Procedure
	if len(args) == 1 || all {
		procs = file.Procedures
	} else {
		proc, err := findProcedure(file, args[1])
		if err != nil {
			return err
		}
		procs = []*syntax.Procedure{proc}
	}

	graphs := make([]builtGraph, 0, len(procs))
	for _, p := range procs {
		g, err := cfg.Build(p.Body, file.Model)
		if err == nil {
			err = cfg.Validate(g)
		}
		graphs = append(graphs, builtGraph{name: p.Name, graph: g, err: err})
	}
	if len(graphs) == 1 && graphs[0].err != nil {
		return fmt.Errorf("building graph of %s: %w", graphs[0].name, graphs[0].err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return writeGraphsJSON(out, graphs)
	case "dot":
		for _, g := range graphs {
			if g.err != nil {
				fmt.Fprintf(out, "// %s: %v\n", g.name, g.err)
				continue
			}
			if err := cfg.WriteDot(out, g.name, g.graph); err != nil {
				return err
			}
		}
	default:
		for i, g := range graphs {
			if i > 0 {
				fmt.Fprintln(out)
			}
			printGraph(out, g)
		}
	}
	return nil
}

// findProcedure matches a qualified name, or a bare method name that names
// exactly one procedure.
func findProcedure(file *csharp.File, name string) (*syntax.Procedure, error) {
	if p := file.Procedure(name); p != nil {
		return p, nil
	}
	var matches []*syntax.Procedure
	for _, p := range file.Procedures {
		if strings.HasSuffix(p.Name, "."+name) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if s := similarNames(file.Names(), name); len(s) > 0 {
			return nil, fmt.Errorf("method %q not found in %s\nDid you mean: %s?", name, file.Path, strings.Join(s, ", "))
		}
		return nil, fmt.Errorf("method %q not found in %s", name, file.Path)
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return nil, fmt.Errorf("method %q is ambiguous: %s", name, strings.Join(names, ", "))
	}
}

// similarNames returns the names containing query, case-insensitively.
func similarNames(names []string, query string) []string {
	q := strings.ToLower(query)
	var out []string
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), q) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func printGraph(w io.Writer, g builtGraph) {
	fmt.Fprintf(w, "=== CFG for method: %s ===\n", g.name)
	if g.err != nil {
		if errors.Is(g.err, cfg.ErrUnsupportedSyntax) {
			fmt.Fprintf(w, "Skipped: %v\n", g.err)
		} else {
			fmt.Fprintf(w, "Error: %v\n", g.err)
		}
		return
	}
	fmt.Fprintf(w, "Cyclomatic Complexity: %d\n", cfg.CyclomaticComplexity(g.graph))
	fmt.Fprint(w, cfg.Render(g.graph))
}

func writeGraphsJSON(w io.Writer, graphs []builtGraph) error {
	type entry struct {
		*cfg.CFGInfo
		Name  string `json:"name,omitempty"`
		Error string `json:"error,omitempty"`
	}
	entries := make([]entry, 0, len(graphs))
	for _, g := range graphs {
		if g.err != nil {
			entries = append(entries, entry{Name: g.name, Error: g.err.Error()})
			continue
		}
		entries = append(entries, entry{CFGInfo: cfg.Export(g.name, g.graph)})
	}

	var v any = entries
	if len(entries) == 1 {
		v = entries[0]
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
