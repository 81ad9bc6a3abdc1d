package csharp

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

func (l *lowerer) unsupportedStmt(n *sitter.Node) syntax.Stmt {
	return &syntax.UnsupportedStmt{Span: spanOf(n), Kind: n.Type()}
}

// statements lowers a statement list in a new scope. A `using var`
// declaration takes the rest of the list as its body.
func (l *lowerer) statements(at syntax.Span, nodes []*sitter.Node) *syntax.Block {
	l.push()
	defer l.pop()
	return l.statementList(at, nodes)
}

func (l *lowerer) statementList(at syntax.Span, nodes []*sitter.Node) *syntax.Block {
	block := &syntax.Block{Span: at}
	for i, n := range nodes {
		if n.Type() == "local_declaration_statement" && hasToken(n, l.content, "using") {
			rest := &syntax.Block{Span: at}
			if i+1 < len(nodes) {
				rest = l.statementList(spanOf(nodes[i+1]), nodes[i+1:])
			}
			block.Stmts = append(block.Stmts, &syntax.Using{
				Span: spanOf(n),
				Decl: l.localDecl(childOfType(n, "variable_declaration")),
				Body: rest,
			})
			return block
		}
		block.Stmts = append(block.Stmts, l.stmt(n))
	}
	return block
}

func (l *lowerer) stmt(n *sitter.Node) syntax.Stmt {
	if n == nil {
		return &syntax.Empty{}
	}
	at := spanOf(n)
	switch n.Type() {
	case "block":
		return l.statements(at, namedChildren(n))
	case "checked_statement", "unsafe_statement":
		return l.stmt(childOfType(n, "block"))
	case "expression_statement":
		return &syntax.ExprStmt{Span: at, X: l.expr(firstExpression(n))}
	case "local_declaration_statement":
		decl := l.localDecl(childOfType(n, "variable_declaration"))
		if hasToken(n, l.content, "const") {
			l.recordConstants(decl)
		}
		return decl
	case "if_statement":
		s := &syntax.If{Span: at, Cond: l.expr(field(n, "condition")), Then: l.scoped(field(n, "consequence"))}
		if alt := field(n, "alternative"); alt != nil {
			if alt.Type() == "else_clause" {
				alt = firstExpression(alt)
			}
			s.Else = l.scoped(alt)
		}
		return s
	case "while_statement":
		return &syntax.While{Span: at, Cond: l.expr(field(n, "condition")), Body: l.scoped(field(n, "body"))}
	case "do_statement":
		return &syntax.Do{Span: at, Body: l.scoped(field(n, "body")), Cond: l.expr(field(n, "condition"))}
	case "for_statement":
		return l.forStmt(n)
	case "foreach_statement":
		return l.foreachStmt(n)
	case "return_statement":
		s := &syntax.Return{Span: at}
		if x := firstExpression(n); x != nil {
			s.X = l.expr(x)
		}
		return s
	case "throw_statement":
		s := &syntax.Throw{Span: at}
		if x := firstExpression(n); x != nil {
			s.X = l.expr(x)
		}
		return s
	case "break_statement":
		return &syntax.Break{Span: at}
	case "continue_statement":
		return &syntax.Continue{Span: at}
	case "goto_statement":
		return l.gotoStmt(n)
	case "labeled_statement":
		cs := namedChildren(n)
		if len(cs) < 2 {
			return l.unsupportedStmt(n)
		}
		return &syntax.Labeled{Span: at, Label: l.text(cs[0]), Stmt: l.stmt(cs[len(cs)-1])}
	case "try_statement":
		return l.tryStmt(n)
	case "using_statement":
		l.push()
		defer l.pop()
		s := &syntax.Using{Span: at}
		if decl := childOfType(n, "variable_declaration"); decl != nil {
			s.Decl = l.localDecl(decl)
		} else {
			for _, c := range namedChildren(n) {
				if !isStatement(c) {
					s.X = l.expr(c)
					break
				}
			}
		}
		s.Body = l.scoped(field(n, "body"))
		return s
	case "lock_statement":
		cs := namedChildren(n)
		if len(cs) < 2 {
			return l.unsupportedStmt(n)
		}
		return &syntax.Lock{Span: at, X: l.expr(cs[0]), Body: l.scoped(cs[len(cs)-1])}
	case "switch_statement":
		return l.switchStmt(n)
	case "empty_statement":
		return &syntax.Empty{Span: at}
	case "local_function_statement":
		// Lowered as a procedure of its own.
		body := field(n, "body")
		if body == nil {
			body = childOfType(n, "block", "arrow_expression_clause")
		}
		l.capture(body)
		return &syntax.Empty{Span: at}
	}
	return l.unsupportedStmt(n)
}

// scoped lowers an embedded statement in its own scope.
func (l *lowerer) scoped(n *sitter.Node) syntax.Stmt {
	if n == nil {
		return nil
	}
	l.push()
	defer l.pop()
	return l.stmt(n)
}

func (l *lowerer) localDecl(n *sitter.Node) *syntax.LocalDecl {
	typText := l.text(field(n, "type"))
	decl := &syntax.LocalDecl{Span: spanOf(n), Type: typText}
	declared := syntax.ParseType(typText)
	for _, v := range namedChildren(n) {
		if v.Type() != "variable_declarator" {
			continue
		}
		name, initNode := declarator(v, l.content)
		d := &syntax.VarDeclarator{Span: spanOf(v), Name: name}
		if initNode != nil {
			d.Init = l.expr(initNode)
		}
		typ := declared
		if typ == nil && d.Init != nil {
			typ = l.inferType(d.Init)
		}
		sym := l.declare(name, typ, syntax.SymbolLocal, d.Span)
		l.model.Bind(d, sym)
		decl.Vars = append(decl.Vars, d)
	}
	return decl
}

func (l *lowerer) recordConstants(decl *syntax.LocalDecl) {
	for _, d := range decl.Vars {
		if d.Init == nil {
			continue
		}
		if v, ok := l.constValue(d.Init); ok {
			l.consts[l.model.SymbolOf(d)] = v
		}
	}
}

// forStmt splits the header by its separators, which is stable across
// grammar revisions that disagree on field names.
func (l *lowerer) forStmt(n *sitter.Node) syntax.Stmt {
	l.push()
	defer l.pop()
	s := &syntax.For{Span: spanOf(n)}
	section := -1
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "(":
			section = 0
			continue
		case ";":
			section++
			continue
		case ")":
			section = 3
			continue
		}
		if !c.IsNamed() || c.Type() == "comment" {
			continue
		}
		switch section {
		case 0:
			if c.Type() == "variable_declaration" {
				s.Init = append(s.Init, l.localDecl(c))
			} else {
				s.Init = append(s.Init, &syntax.ExprStmt{Span: spanOf(c), X: l.expr(c)})
			}
		case 1:
			s.Cond = l.expr(c)
		case 2:
			s.Post = append(s.Post, &syntax.ExprStmt{Span: spanOf(c), X: l.expr(c)})
		case 3:
			s.Body = l.scoped(c)
		}
	}
	return s
}

func (l *lowerer) foreachStmt(n *sitter.Node) syntax.Stmt {
	left := field(n, "left")
	right := field(n, "right")
	body := field(n, "body")
	if left == nil || right == nil || left.Type() != "identifier" {
		return l.unsupportedStmt(n)
	}
	s := &syntax.Foreach{Span: spanOf(n), Collection: l.expr(right)}

	l.push()
	defer l.pop()
	v := &syntax.VarDeclarator{Span: spanOf(left), Name: l.text(left)}
	sym := l.declare(v.Name, syntax.ParseType(l.text(field(n, "type"))), syntax.SymbolLocal, v.Span)
	l.model.Bind(v, sym)
	s.Var = v
	s.Body = l.stmt(body)
	return s
}

func (l *lowerer) gotoStmt(n *sitter.Node) syntax.Stmt {
	s := &syntax.Goto{Span: spanOf(n)}
	switch {
	case hasToken(n, l.content, "case"):
		s.Kind = syntax.GotoCase
		s.Case = l.expr(firstExpression(n))
	case hasToken(n, l.content, "default"):
		s.Kind = syntax.GotoDefault
	default:
		s.Label = l.text(firstExpression(n))
	}
	return s
}

func (l *lowerer) tryStmt(n *sitter.Node) syntax.Stmt {
	s := &syntax.Try{Span: spanOf(n)}
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "block":
			s.Body = l.statements(spanOf(c), namedChildren(c))
		case "catch_clause":
			s.Catches = append(s.Catches, l.catchClause(c))
		case "finally_clause":
			if b := childOfType(c, "block"); b != nil {
				s.Finally = l.statements(spanOf(b), namedChildren(b))
			}
		}
	}
	if s.Body == nil {
		return l.unsupportedStmt(n)
	}
	return s
}

func (l *lowerer) catchClause(n *sitter.Node) *syntax.Catch {
	l.push()
	defer l.pop()
	c := &syntax.Catch{Span: spanOf(n)}
	if decl := childOfType(n, "catch_declaration"); decl != nil {
		c.Type = l.text(field(decl, "type"))
		if c.Type == "" {
			c.Type = l.text(firstExpression(decl))
		}
		if name := field(decl, "name"); name != nil {
			c.Var = l.text(name)
			l.model.Bind(c, l.declare(c.Var, syntax.ParseType(c.Type), syntax.SymbolLocal, spanOf(name)))
		}
	}
	if filter := childOfType(n, "catch_filter_clause"); filter != nil {
		c.Filter = l.expr(firstExpression(filter))
	}
	body := field(n, "body")
	if body == nil {
		body = childOfType(n, "block")
	}
	c.Body = l.statements(spanOf(body), namedChildren(body))
	return c
}

// switchStmt lowers constant case labels. Pattern labels and when clauses
// make the statement unsupported.
func (l *lowerer) switchStmt(n *sitter.Node) syntax.Stmt {
	value := field(n, "value")
	if value == nil {
		value = firstExpression(n)
	}
	s := &syntax.Switch{Span: spanOf(n), X: l.expr(value)}
	body := field(n, "body")
	if body == nil {
		body = childOfType(n, "switch_body")
	}
	l.push()
	defer l.pop()
	for _, sec := range namedChildren(body) {
		if sec.Type() != "switch_section" {
			continue
		}
		section := &syntax.SwitchSection{Span: spanOf(sec)}
		var stmts []*sitter.Node
		afterCase := false
		for i := 0; i < int(sec.ChildCount()); i++ {
			c := sec.Child(i)
			if c == nil {
				continue
			}
			switch c.Type() {
			case "case":
				afterCase = true
				continue
			case "default", "default_switch_label":
				section.Default = true
				continue
			case "case_switch_label":
				section.Cases = append(section.Cases, l.expr(firstExpression(c)))
				continue
			case "case_pattern_switch_label", "when_clause":
				return l.unsupportedStmt(n)
			}
			if !c.IsNamed() || c.Type() == "comment" {
				continue
			}
			switch {
			case afterCase:
				afterCase = false
				label := c
				if label.Type() == "constant_pattern" {
					label = firstExpression(label)
				}
				if isPatternNode(label) {
					return l.unsupportedStmt(n)
				}
				section.Cases = append(section.Cases, l.expr(label))
			case isStatement(c):
				stmts = append(stmts, c)
			}
		}
		section.Body = l.statementList(spanOf(sec), stmts).Stmts
		s.Sections = append(s.Sections, section)
	}
	return s
}
