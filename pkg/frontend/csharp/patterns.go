package csharp

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

var patternNodes = map[string]bool{
	"declaration_pattern":   true,
	"var_pattern":           true,
	"discard":               true,
	"negated_pattern":       true,
	"and_pattern":           true,
	"or_pattern":            true,
	"binary_pattern":        true,
	"relational_pattern":    true,
	"parenthesized_pattern": true,
	"type_pattern":          true,
	"recursive_pattern":     true,
	"list_pattern":          true,
}

// isPatternNode reports whether n is a pattern other than a constant.
func isPatternNode(n *sitter.Node) bool {
	return n != nil && patternNodes[n.Type()]
}

// pattern lowers a pattern. It returns false for patterns the analysis does
// not model, such as list and positional patterns.
func (l *lowerer) pattern(n *sitter.Node) (syntax.Pattern, bool) {
	if n == nil {
		return nil, false
	}
	at := spanOf(n)
	switch n.Type() {
	case "constant_pattern":
		return &syntax.ConstantPattern{Span: at, Value: l.expr(firstExpression(n))}, true
	case "discard":
		return &syntax.DiscardPattern{Span: at}, true
	case "parenthesized_pattern":
		return l.pattern(firstExpression(n))
	case "type_pattern", "predefined_type", "qualified_name", "generic_name", "nullable_type", "array_type":
		typ := field(n, "type")
		if typ == nil {
			typ = n
		}
		return &syntax.DeclarationPattern{Span: at, Type: l.text(typ)}, true
	case "declaration_pattern":
		p := &syntax.DeclarationPattern{Span: at, Type: l.text(field(n, "type"))}
		if name := field(n, "name"); name != nil && name.Type() == "identifier" {
			p.Name = l.text(name)
			l.model.Bind(p, l.declare(p.Name, syntax.ParseType(p.Type), syntax.SymbolLocal, spanOf(name)))
		}
		return p, true
	case "var_pattern":
		name := childOfType(n, "identifier")
		if name == nil {
			return &syntax.DiscardPattern{Span: at}, true
		}
		p := &syntax.VarPattern{Span: at, Name: l.text(name)}
		l.model.Bind(p, l.declare(p.Name, nil, syntax.SymbolLocal, spanOf(name)))
		return p, true
	case "negated_pattern":
		inner, ok := l.pattern(firstExpression(n))
		if !ok {
			return nil, false
		}
		return &syntax.NotPattern{Span: at, Pattern: inner}, true
	case "and_pattern", "or_pattern", "binary_pattern":
		return l.binaryPattern(n)
	case "relational_pattern":
		op := ""
		if c := n.Child(0); c != nil {
			op = l.text(c)
		}
		return &syntax.RelationalPattern{Span: at, Op: op, Value: l.expr(lastNamed(n))}, true
	case "recursive_pattern":
		return l.recursivePattern(n)
	case "list_pattern":
		return nil, false
	case "identifier":
		// A bare name is a constant when it resolves to a value, otherwise
		// a type.
		if l.resolve(l.text(n)) == nil {
			return &syntax.DeclarationPattern{Span: at, Type: l.text(n)}, true
		}
	}
	return &syntax.ConstantPattern{Span: at, Value: l.expr(n)}, true
}

func (l *lowerer) binaryPattern(n *sitter.Node) (syntax.Pattern, bool) {
	left, right := field(n, "left"), field(n, "right")
	if left == nil || right == nil {
		cs := namedChildren(n)
		if len(cs) != 2 {
			return nil, false
		}
		left, right = cs[0], cs[1]
	}
	op := "and"
	if n.Type() == "or_pattern" || hasToken(n, l.content, "or") {
		op = "or"
	}
	lp, ok := l.pattern(left)
	if !ok {
		return nil, false
	}
	rp, ok := l.pattern(right)
	if !ok {
		return nil, false
	}
	return &syntax.BinaryPattern{Span: spanOf(n), Op: op, Left: lp, Right: rp}, true
}

func (l *lowerer) recursivePattern(n *sitter.Node) (syntax.Pattern, bool) {
	p := &syntax.RecursivePattern{Span: spanOf(n)}
	if typ := field(n, "type"); typ != nil {
		p.Type = l.text(typ)
	}
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "positional_pattern_clause":
			return nil, false
		case "property_pattern_clause":
			for _, sub := range namedChildren(c) {
				if sub.Type() != "subpattern" {
					continue
				}
				sp, ok := l.subpattern(sub)
				if !ok {
					return nil, false
				}
				p.Props = append(p.Props, sp)
			}
		case "identifier":
			if p.Type == "" && field(n, "type") == nil && c.StartByte() == n.StartByte() {
				p.Type = l.text(c)
				continue
			}
			p.Name = l.text(c)
		case "predefined_type", "qualified_name", "generic_name":
			if p.Type == "" {
				p.Type = l.text(c)
			}
		}
	}
	if p.Name != "" {
		l.model.Bind(p, l.declare(p.Name, syntax.ParseType(p.Type), syntax.SymbolLocal, p.Span))
	}
	return p, true
}

func (l *lowerer) subpattern(n *sitter.Node) (*syntax.Subpattern, bool) {
	sp := &syntax.Subpattern{Span: spanOf(n)}
	var pat *sitter.Node
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "expression_colon", "name_colon":
			name := firstExpression(c)
			if name != nil && name.Type() != "identifier" {
				// Extended property patterns like A.B: are not modeled.
				return nil, false
			}
			sp.Member = l.text(name)
		default:
			pat = c
		}
	}
	if sp.Member == "" {
		return nil, false
	}
	p, ok := l.pattern(pat)
	if !ok {
		return nil, false
	}
	sp.Pattern = p
	return sp, true
}
