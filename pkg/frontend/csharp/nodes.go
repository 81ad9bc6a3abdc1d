package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// spanOf converts a tree-sitter range to a 1-based span.
func spanOf(n *sitter.Node) syntax.Span {
	if n == nil {
		return syntax.Span{}
	}
	start, end := n.StartPoint(), n.EndPoint()
	return syntax.Span{
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

// getNodeText extracts text from a node.
func getNodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start >= uint32(len(content)) || end > uint32(len(content)) {
		return ""
	}
	return string(content[start:end])
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// field returns the child stored under one of the field names, trying
// them in order. Grammar revisions renamed several fields.
func field(n *sitter.Node, names ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	for _, name := range names {
		if c := n.ChildByFieldName(name); c != nil {
			return c
		}
	}
	return nil
}

// childOfType returns the first named child with one of the given types.
func childOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, c := range namedChildren(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

// hasToken reports whether n has a direct child token (or modifier) with
// the given text.
func hasToken(n *sitter.Node, content []byte, text string) bool {
	if n == nil {
		return false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if c.Type() == text {
			return true
		}
		if (c.Type() == "modifier" || c.Type() == "parameter_modifier") && getNodeText(c, content) == text {
			return true
		}
	}
	return false
}

// firstExpression returns the first named child that is not a comment.
func firstExpression(n *sitter.Node) *sitter.Node {
	cs := namedChildren(n)
	if len(cs) == 0 {
		return nil
	}
	return cs[0]
}

func lastNamed(n *sitter.Node) *sitter.Node {
	cs := namedChildren(n)
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

func isStatement(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	return n.Type() == "block" || strings.HasSuffix(n.Type(), "_statement")
}
