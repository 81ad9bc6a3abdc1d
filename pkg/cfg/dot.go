package cfg

import (
	"fmt"
	"io"
	"strings"
)

// WriteDot writes the graph in Graphviz DOT format. Blocks become record
// nodes listing their operations; edges carry their labels.
func WriteDot(w io.Writer, name string, g *Graph) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph \"%s\" {\n", encodeDot(name))
	for _, blk := range g.Blocks {
		fields := []string{fmt.Sprintf("%s #%d", strings.ToUpper(string(blk.Kind)), blk.ID)}
		for _, n := range blk.Instructions {
			fields = append(fields, encodeDot(Describe(n)))
		}
		if blk.Terminator != nil {
			fields = append(fields, encodeDot("["+Describe(blk.Terminator)+"]"))
		}
		fmt.Fprintf(&sb, "  B%d [shape=record label=\"{%s}\"]\n", blk.ID, strings.Join(fields, "|"))
	}
	for _, blk := range g.Blocks {
		for _, e := range blk.Successors {
			fmt.Fprintf(&sb, "  B%d -> B%d", blk.ID, e.To.ID)
			var attrs []string
			if e.Label != LabelPlain {
				attrs = append(attrs, fmt.Sprintf("label=\"%s\"", e.Label))
			}
			if e.Label == LabelException {
				attrs = append(attrs, "style=dashed")
			}
			if len(attrs) > 0 {
				sb.WriteString(" [" + strings.Join(attrs, " ") + "]")
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

var dotEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`{`, `\{`,
	`}`, `\}`,
	`|`, `\|`,
	`<`, `\<`,
	`>`, `\>`,
	"\r", "",
	"\n", `\n`,
)

// encodeDot escapes text for use inside a record label.
func encodeDot(s string) string {
	return dotEscaper.Replace(s)
}
