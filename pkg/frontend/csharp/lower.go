package csharp

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// lowerer converts the body of one member. Scopes map simple names to the
// symbols of locals and parameters; anything not found there falls back to
// the members of the enclosing type.
type lowerer struct {
	content []byte
	model   *syntax.MapModel
	decls   *declarations
	class   *classInfo
	scopes  []map[string]*syntax.Symbol
	consts  map[*syntax.Symbol]any
}

func newLowerer(content []byte, model *syntax.MapModel, decls *declarations, class *classInfo) *lowerer {
	return &lowerer{
		content: content,
		model:   model,
		decls:   decls,
		class:   class,
		consts:  make(map[*syntax.Symbol]any),
	}
}

func (l *lowerer) text(n *sitter.Node) string { return getNodeText(n, l.content) }

func (l *lowerer) push() { l.scopes = append(l.scopes, make(map[string]*syntax.Symbol)) }

func (l *lowerer) pop() { l.scopes = l.scopes[:len(l.scopes)-1] }

// declare introduces a local or parameter in the innermost scope.
func (l *lowerer) declare(name string, typ *syntax.Type, kind syntax.SymbolKind, at syntax.Span) *syntax.Symbol {
	if len(l.scopes) == 0 {
		l.push()
	}
	sym := &syntax.Symbol{Name: name, Kind: kind, Type: typ, Decl: at}
	if name != "_" {
		l.scopes[len(l.scopes)-1][name] = sym
	}
	return sym
}

func (l *lowerer) resolve(name string) *syntax.Symbol {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if s, ok := l.scopes[i][name]; ok {
			return s
		}
	}
	if l.class != nil {
		return l.class.members[name]
	}
	return nil
}

// capture marks the locals and parameters in scope that n refers to.
// Member names after a dot are not references.
func (l *lowerer) capture(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		if sym := l.resolve(l.text(n)); sym != nil && (sym.Kind == syntax.SymbolLocal || sym.Kind == syntax.SymbolParameter) {
			sym.Captured = true
		}
		return
	case "member_access_expression":
		l.capture(field(n, "expression"))
		return
	}
	for _, c := range namedChildren(n) {
		l.capture(c)
	}
}

// constant returns the compile-time value of a resolved const symbol.
func (l *lowerer) constant(sym *syntax.Symbol) (any, bool) {
	if sym == nil {
		return nil, false
	}
	if v, ok := l.consts[sym]; ok {
		return v, true
	}
	if l.class != nil {
		v, ok := l.class.constants[sym]
		return v, ok
	}
	return nil, false
}

// procedure lowers m, or returns nil for members without a body.
func (l *lowerer) procedure(m *member) *syntax.Procedure {
	l.push()
	defer l.pop()

	proc := &syntax.Procedure{Span: spanOf(m.node), Name: m.name}
	switch m.kind {
	case memberTopLevel:
		proc.Body = l.statements(spanOf(m.node), m.statements)
		return proc
	case memberAccessor, memberArrowProperty:
		typ := syntax.ParseType(l.text(field(m.owner, "type")))
		for _, p := range namedChildren(field(m.owner, "parameters")) {
			proc.Params = append(proc.Params, l.parameter(p))
		}
		if m.kind == memberArrowProperty {
			proc.ReturnType = typ
			proc.Body = l.expr(firstExpression(m.node))
			return proc
		}
		if hasToken(m.node, l.content, "get") {
			proc.ReturnType = typ
		} else {
			proc.Params = append(proc.Params, l.declare("value", typ, syntax.SymbolParameter, spanOf(m.node)))
		}
	default:
		if ret := l.text(field(m.node, "returns", "type")); ret != "" && ret != "void" {
			proc.ReturnType = syntax.ParseType(ret)
		}
		for _, p := range namedChildren(field(m.node, "parameters")) {
			if p.Type() == "parameter" {
				proc.Params = append(proc.Params, l.parameter(p))
			}
		}
	}

	body := field(m.node, "body")
	if body == nil {
		body = childOfType(m.node, "block", "arrow_expression_clause")
	}
	switch {
	case body == nil:
		return nil
	case body.Type() == "arrow_expression_clause":
		proc.Body = l.expr(firstExpression(body))
	default:
		proc.Body = l.stmt(body)
	}
	return proc
}

func (l *lowerer) parameter(p *sitter.Node) *syntax.Symbol {
	nameNode := field(p, "name")
	if nameNode == nil {
		nameNode = childOfType(p, "identifier")
	}
	return l.declare(l.text(nameNode), syntax.ParseType(l.text(field(p, "type"))), syntax.SymbolParameter, spanOf(p))
}
