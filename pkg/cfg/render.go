package cfg

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// Render returns a deterministic text dump of the graph: one section per
// block with its kind, operations, terminator and labeled successors. Two
// graphs with the same structure render identically.
func Render(g *Graph) string {
	var sb strings.Builder
	for _, blk := range g.Blocks {
		fmt.Fprintf(&sb, "B%d %s", blk.ID, blk.Kind)
		if g.IsLoopHeader(blk) {
			sb.WriteString(" (loop)")
		}
		sb.WriteString("\n")
		for _, n := range blk.Instructions {
			fmt.Fprintf(&sb, "  %s\n", Describe(n))
		}
		if blk.Terminator != nil {
			fmt.Fprintf(&sb, "  [%s]\n", Describe(blk.Terminator))
		}
		for _, e := range blk.Successors {
			sb.WriteString("  -> ")
			sb.WriteString(edgeText(e))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func edgeText(e Edge) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "B%d", e.To.ID)
	if e.Label != LabelPlain {
		sb.WriteString(" " + string(e.Label))
	}
	if e.Back {
		sb.WriteString(" back")
	}
	for _, r := range e.Resume {
		fmt.Fprintf(&sb, " resume(B%d->B%d)", r.Exit.ID, r.Target.ID)
	}
	return sb.String()
}

// Describe renders a single operation or terminator.
func Describe(n syntax.Node) string {
	switch n := n.(type) {
	case *syntax.VarDeclarator:
		if n.Init == nil {
			return "declare " + n.Name
		}
		return "declare " + n.Name + " = " + syntax.Format(n.Init)
	case *syntax.ExprStmt:
		return "pop " + syntax.Format(n.X)
	case *syntax.Using:
		return syntax.Format(n)
	case *syntax.Binary:
		if n.Op == "&&" || n.Op == "||" || n.Op == "??" {
			return n.Op + " " + syntax.Format(n.X)
		}
	case *syntax.Assign:
		if n.Op == "??=" {
			return "??= " + syntax.Format(n.Left)
		}
	case *syntax.ConditionalAccess:
		return "?. " + syntax.Format(n.X)
	}
	return syntax.Format(n)
}
