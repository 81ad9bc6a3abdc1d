package csharp

import (
	"strconv"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// linqExtensions are System.Linq and collection extension methods. A null
// receiver makes them throw ArgumentNullException rather than dereference.
var linqExtensions = map[string]bool{
	"Aggregate": true, "All": true, "Any": true, "Average": true, "Cast": true,
	"Concat": true, "Contains": true, "Count": true, "DefaultIfEmpty": true,
	"Distinct": true, "ElementAt": true, "ElementAtOrDefault": true, "Except": true,
	"First": true, "FirstOrDefault": true, "GroupBy": true, "Intersect": true,
	"Last": true, "LastOrDefault": true, "LongCount": true, "Max": true, "Min": true,
	"OfType": true, "OrderBy": true, "OrderByDescending": true, "Reverse": true,
	"Select": true, "SelectMany": true, "SequenceEqual": true, "Single": true,
	"SingleOrDefault": true, "Skip": true, "Sum": true, "Take": true,
	"ToArray": true, "ToDictionary": true, "ToHashSet": true, "ToList": true,
	"Union": true, "Where": true, "Zip": true,
}

// opaqueKinds are expressions evaluated for their operands only. The value
// says whether the result is known to be non-null.
var opaqueKinds = map[string]bool{
	"typeof_expression":                     true,
	"sizeof_expression":                     true,
	"default_expression":                    false,
	"await_expression":                      false,
	"tuple_expression":                      true,
	"anonymous_object_creation_expression":  true,
	"array_creation_expression":             true,
	"implicit_array_creation_expression":    true,
	"implicit_stackalloc_expression":        true,
	"stack_alloc_array_creation_expression": true,
	"stackalloc_expression":                 true,
	"switch_expression":                     false,
	"query_expression":                      true,
	"range_expression":                      true,
	"with_expression":                       true,
	"interpolated_string_expression":        true,
	"collection_expression":                 true,
}

func (l *lowerer) unsupportedExpr(n *sitter.Node) syntax.Expr {
	kind := "missing"
	if n != nil {
		kind = n.Type()
	}
	return &syntax.UnsupportedExpr{Span: spanOf(n), Kind: kind}
}

func (l *lowerer) exprs(nodes []*sitter.Node) []syntax.Expr {
	out := make([]syntax.Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, l.expr(n))
	}
	return out
}

func (l *lowerer) expr(n *sitter.Node) syntax.Expr {
	if n == nil {
		return l.unsupportedExpr(nil)
	}
	at := spanOf(n)
	switch n.Type() {
	case "parenthesized_expression":
		return &syntax.Paren{Span: at, X: l.expr(firstExpression(n))}
	case "checked_expression", "ref_expression", "makeref_expression":
		return l.expr(lastNamed(n))
	case "identifier":
		return l.ident(n)
	case "generic_name":
		return &syntax.Identifier{Span: at, Name: l.text(childOfType(n, "identifier"))}
	case "predefined_type", "qualified_name", "alias_qualified_name", "nullable_type", "array_type":
		return &syntax.Identifier{Span: at, Name: l.text(n)}
	case "this_expression", "this", "base_expression", "base":
		return &syntax.This{Span: at}
	case "null_literal", "boolean_literal", "integer_literal", "real_literal",
		"character_literal", "string_literal", "verbatim_string_literal", "raw_string_literal":
		return l.literal(n)
	case "member_access_expression":
		return l.memberAccess(n)
	case "member_binding_expression":
		return &syntax.MemberBinding{Span: at, Name: l.text(field(n, "name", "identifier"))}
	case "element_binding_expression":
		return &syntax.ElementBinding{Span: at, Index: l.arguments(childOfType(n, "bracketed_argument_list"))}
	case "conditional_access_expression":
		return l.conditionalAccess(n)
	case "invocation_expression":
		return l.invocation(n)
	case "element_access_expression":
		x := l.expr(field(n, "expression"))
		index := l.arguments(field(n, "subscript"))
		return liftConditional(x, func(recv syntax.Expr) syntax.Expr {
			return &syntax.ElementAccess{Span: at, X: recv, Index: index}
		})
	case "object_creation_expression", "implicit_object_creation_expression":
		return l.objectCreation(n)
	case "binary_expression":
		return l.binary(n)
	case "prefix_unary_expression":
		op := ""
		if c := n.Child(0); c != nil {
			op = l.text(c)
		}
		return &syntax.Unary{Span: at, Op: op, X: l.expr(lastNamed(n))}
	case "postfix_unary_expression":
		op := ""
		if c := n.Child(int(n.ChildCount()) - 1); c != nil {
			op = l.text(c)
		}
		return &syntax.Postfix{Span: at, Op: op, X: l.expr(firstExpression(n))}
	case "assignment_expression":
		return &syntax.Assign{
			Span:  at,
			Op:    l.text(field(n, "operator")),
			Left:  l.expr(field(n, "left")),
			Right: l.expr(field(n, "right")),
		}
	case "conditional_expression":
		return &syntax.Conditional{
			Span: at,
			Cond: l.expr(field(n, "condition")),
			Then: l.expr(field(n, "consequence")),
			Else: l.expr(field(n, "alternative")),
		}
	case "is_pattern_expression":
		cs := namedChildren(n)
		xNode, pNode := field(n, "expression"), field(n, "pattern")
		if xNode == nil && len(cs) == 2 {
			xNode, pNode = cs[0], cs[1]
		}
		x := l.expr(xNode)
		p, ok := l.pattern(pNode)
		if !ok {
			return l.unsupportedExpr(n)
		}
		return &syntax.IsPattern{Span: at, X: x, Pattern: p}
	case "is_expression":
		right := field(n, "right")
		return &syntax.IsPattern{Span: at, X: l.expr(field(n, "left")), Pattern: &syntax.DeclarationPattern{Span: spanOf(right), Type: l.text(right)}}
	case "as_expression":
		return l.as(at, field(n, "left"), field(n, "right"))
	case "cast_expression":
		c := &syntax.Cast{Span: at, Type: l.text(field(n, "type")), X: l.expr(field(n, "value"))}
		l.model.SetType(c, syntax.ParseType(c.Type))
		return c
	case "lambda_expression", "anonymous_method_expression":
		l.capture(n)
		return &syntax.Lambda{Span: at, Text: l.text(n)}
	case "throw_expression", "declaration_expression":
		return l.unsupportedExpr(n)
	}
	if notNull, ok := opaqueKinds[n.Type()]; ok {
		return l.opaque(n, notNull)
	}
	return l.unsupportedExpr(n)
}

// ident binds a simple name to its declaration. Names that resolve to
// nothing stay unbound: types, static classes, methods of other types.
func (l *lowerer) ident(n *sitter.Node) syntax.Expr {
	id := &syntax.Identifier{Span: spanOf(n), Name: l.text(n)}
	sym := l.resolve(id.Name)
	if sym == nil {
		return id
	}
	l.model.Bind(id, sym)
	if v, ok := l.constant(sym); ok {
		l.model.SetConstant(id, v)
	}
	return id
}

func (l *lowerer) memberAccess(n *sitter.Node) syntax.Expr {
	at := spanOf(n)
	nameNode := field(n, "name")
	if nameNode != nil && nameNode.Type() == "generic_name" {
		nameNode = childOfType(nameNode, "identifier")
	}
	name := l.text(nameNode)
	x := l.expr(field(n, "expression"))
	return liftConditional(x, func(recv syntax.Expr) syntax.Expr {
		ma := &syntax.MemberAccess{Span: at, X: recv, Name: name}
		if _, isThis := recv.(*syntax.This); isThis {
			if sym := l.class.members[name]; sym != nil {
				l.model.Bind(ma, sym)
				if v, ok := l.class.constants[sym]; ok {
					l.model.SetConstant(ma, v)
				}
			}
		}
		return ma
	})
}

// conditionalAccess lowers `x?.rest`. tree-sitter nests chains to the left,
// so `a?.b?.c` arrives with `a?.b` as the condition; the result is
// re-associated so that every access after a `?.` sits in WhenNotNull.
func (l *lowerer) conditionalAccess(n *sitter.Node) syntax.Expr {
	at := spanOf(n)
	cond := field(n, "condition")
	var binding *sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "member_binding_expression" || c.Type() == "element_binding_expression" {
			binding = c
		}
	}
	if cond == nil {
		cond = firstExpression(n)
	}
	if last := lastNamed(n); binding == nil && last != nil && (cond == nil || last.StartByte() != cond.StartByte()) {
		binding = last
	}
	if binding == nil {
		return l.unsupportedExpr(n)
	}
	x := l.expr(cond)
	whenNotNull := l.expr(binding)
	return liftConditional(x, func(recv syntax.Expr) syntax.Expr {
		return &syntax.ConditionalAccess{Span: at, X: recv, WhenNotNull: whenNotNull}
	})
}

// liftConditional applies wrap inside the innermost WhenNotNull of x, so
// that an access on the result of `a?.b` is part of the null-conditional
// chain.
func liftConditional(x syntax.Expr, wrap func(syntax.Expr) syntax.Expr) syntax.Expr {
	ca, ok := x.(*syntax.ConditionalAccess)
	if !ok {
		return wrap(x)
	}
	return &syntax.ConditionalAccess{Span: ca.Span, X: ca.X, WhenNotNull: liftConditional(ca.WhenNotNull, wrap)}
}

func (l *lowerer) invocation(n *sitter.Node) syntax.Expr {
	at := spanOf(n)
	fn := field(n, "function")
	if fn == nil {
		fn = firstExpression(n)
	}
	args := l.arguments(field(n, "arguments"))

	var fun syntax.Expr
	switch fn.Type() {
	case "identifier", "generic_name":
		name := l.text(fn)
		if fn.Type() == "generic_name" {
			name = l.text(childOfType(fn, "identifier"))
		}
		fun = &syntax.Identifier{Span: spanOf(fn), Name: name}
	default:
		fun = l.expr(fn)
	}

	return liftConditional(fun, func(f syntax.Expr) syntax.Expr {
		inv := &syntax.Invocation{Span: at, Fun: f, Args: args}
		name := syntax.MethodName(inv)
		recv := syntax.ReceiverOf(inv)
		_, onThis := recv.(*syntax.This)
		if _, local := f.(*syntax.Identifier); local || onThis {
			if ret, ok := l.class.returns[name]; ok && ret != nil {
				l.model.SetType(inv, ret)
			}
		}
		if recv != nil && !onThis && !l.isTypeName(recv) && (l.decls.extensions[name] || linqExtensions[name]) {
			l.model.MarkExtension(inv)
		}
		return inv
	})
}

// isTypeName reports whether e names a type rather than a value, as in
// `string.IsNullOrEmpty(s)` or `Console.WriteLine()`.
func (l *lowerer) isTypeName(e syntax.Expr) bool {
	id, ok := e.(*syntax.Identifier)
	if !ok || l.model.SymbolOf(id) != nil {
		return false
	}
	r := []rune(id.Name)
	return len(r) > 0 && (unicode.IsUpper(r[0]) || syntax.ParseType(id.Name).Kind != syntax.TypeReference)
}

// arguments lowers an argument_list or bracketed_argument_list.
func (l *lowerer) arguments(n *sitter.Node) []syntax.Expr {
	var out []syntax.Expr
	for _, a := range namedChildren(n) {
		if a.Type() != "argument" {
			out = append(out, l.expr(a))
			continue
		}
		out = append(out, l.argument(a))
	}
	return out
}

func (l *lowerer) argument(a *sitter.Node) syntax.Expr {
	value := lastNamed(a)
	modifier := ""
	for _, m := range []string{"ref", "out", "in"} {
		if hasToken(a, l.content, m) {
			modifier = m
		}
	}
	if value == nil {
		return l.unsupportedExpr(a)
	}
	if value.Type() == "declaration_expression" {
		nameNode := field(value, "name")
		if nameNode == nil {
			nameNode = lastNamed(value)
		}
		target := &syntax.Identifier{Span: spanOf(nameNode), Name: l.text(nameNode)}
		ra := &syntax.RefArg{Span: spanOf(a), Modifier: modifier, Target: target, Declares: true}
		sym := l.declare(target.Name, syntax.ParseType(l.text(field(value, "type"))), syntax.SymbolLocal, target.Span)
		l.model.Bind(target, sym)
		l.model.Bind(ra, sym)
		return ra
	}
	if modifier == "" {
		return l.expr(value)
	}
	return &syntax.RefArg{Span: spanOf(a), Modifier: modifier, Target: l.expr(value)}
}

func (l *lowerer) objectCreation(n *sitter.Node) syntax.Expr {
	oc := &syntax.ObjectCreation{
		Span: spanOf(n),
		Type: l.text(field(n, "type")),
		Args: l.arguments(field(n, "arguments")),
	}
	if init := field(n, "initializer"); init != nil {
		oc.Initializers = len(namedChildren(init))
	} else if init := childOfType(n, "initializer_expression"); init != nil {
		oc.Initializers = len(namedChildren(init))
	}
	if t := syntax.ParseType(oc.Type); t != nil {
		l.model.SetType(oc, t)
	}
	return oc
}

func (l *lowerer) binary(n *sitter.Node) syntax.Expr {
	at := spanOf(n)
	op := l.text(field(n, "operator"))
	left, right := field(n, "left"), field(n, "right")
	switch op {
	case "as":
		return l.as(at, left, right)
	case "is":
		return &syntax.IsPattern{Span: at, X: l.expr(left), Pattern: &syntax.DeclarationPattern{Span: spanOf(right), Type: l.text(right)}}
	}
	b := &syntax.Binary{Span: at, Op: op, X: l.expr(left), Y: l.expr(right)}
	switch op {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		l.model.SetType(b, &syntax.Type{Name: "bool", Kind: syntax.TypeBool})
	}
	return b
}

func (l *lowerer) as(at syntax.Span, x, typ *sitter.Node) syntax.Expr {
	e := &syntax.As{Span: at, X: l.expr(x), Type: l.text(typ)}
	if t := syntax.ParseType(e.Type); t != nil {
		l.model.SetType(e, t)
	}
	return e
}

func (l *lowerer) opaque(n *sitter.Node, notNull bool) syntax.Expr {
	o := &syntax.Opaque{Span: spanOf(n), Kind: strings.TrimSuffix(n.Type(), "_expression"), NotNull: notNull}
	switch n.Type() {
	case "interpolated_string_expression":
		for _, c := range namedChildren(n) {
			if c.Type() == "interpolation" {
				if x := firstExpression(c); x != nil {
					o.Operands = append(o.Operands, l.expr(x))
				}
			}
		}
		l.model.SetType(o, &syntax.Type{Name: "string", Kind: syntax.TypeString})
	case "await_expression", "with_expression":
		o.Operands = []syntax.Expr{l.expr(firstExpression(n))}
	case "switch_expression":
		o.Operands = []syntax.Expr{l.expr(field(n, "value"))}
	case "tuple_expression":
		o.Operands = l.arguments(n)
	case "typeof_expression", "sizeof_expression", "default_expression",
		"anonymous_object_creation_expression", "query_expression":
	default:
		if init := childOfType(n, "initializer_expression"); init != nil {
			o.Operands = l.exprs(namedChildren(init))
		}
	}
	return o
}

// literal lowers literal tokens. String values are stored without quotes.
func (l *lowerer) literal(n *sitter.Node) syntax.Expr {
	lit := &syntax.Literal{Span: spanOf(n), Value: l.text(n)}
	switch n.Type() {
	case "null_literal":
		lit.Kind = syntax.LitNull
	case "boolean_literal":
		lit.Kind = syntax.LitBool
	case "integer_literal":
		lit.Kind = syntax.LitInt
		lit.Value = strings.ReplaceAll(lit.Value, "_", "")
	case "real_literal":
		lit.Kind = syntax.LitReal
	case "character_literal":
		lit.Kind = syntax.LitChar
	default:
		lit.Kind = syntax.LitString
		lit.Value = unquote(lit.Value)
	}
	return lit
}

func unquote(s string) string {
	switch {
	case strings.HasPrefix(s, `"""`):
		return strings.TrimSpace(strings.Trim(s, `"`))
	case strings.HasPrefix(s, `@"`):
		return strings.ReplaceAll(strings.TrimSuffix(s[2:], `"`), `""`, `"`)
	}
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return strings.Trim(s, `"`)
}

// constValue returns the compile-time value of a lowered constant
// expression.
func (l *lowerer) constValue(e syntax.Expr) (any, bool) {
	switch e := syntax.RemoveParentheses(e).(type) {
	case *syntax.Literal:
		return literalConstant(e)
	case *syntax.Unary:
		if e.Op != "-" {
			return nil, false
		}
		if v, ok := l.constValue(e.X); ok {
			if k, isInt := v.(int64); isInt {
				return -k, true
			}
		}
	case *syntax.Identifier, *syntax.MemberAccess:
		return l.model.ConstantValueOf(e)
	}
	return nil, false
}

func literalConstant(lit *syntax.Literal) (any, bool) {
	switch lit.Kind {
	case syntax.LitNull:
		return nil, true
	case syntax.LitBool:
		return lit.Value == "true", true
	case syntax.LitInt:
		k, err := strconv.ParseInt(strings.TrimRight(lit.Value, "uUlL"), 0, 64)
		return k, err == nil
	case syntax.LitString:
		return lit.Value, true
	}
	return nil, false
}

// literalValue evaluates a literal initializer of a const field directly
// from the parse tree.
func literalValue(n *sitter.Node, content []byte) (any, bool) {
	if n == nil {
		return nil, false
	}
	switch n.Type() {
	case "prefix_unary_expression":
		if c := n.Child(0); c == nil || getNodeText(c, content) != "-" {
			return nil, false
		}
		if v, ok := literalValue(lastNamed(n), content); ok {
			if k, isInt := v.(int64); isInt {
				return -k, true
			}
		}
		return nil, false
	case "parenthesized_expression":
		return literalValue(firstExpression(n), content)
	}
	if !strings.HasSuffix(n.Type(), "_literal") {
		return nil, false
	}
	lit, ok := (&lowerer{content: content}).literal(n).(*syntax.Literal)
	if !ok {
		return nil, false
	}
	return literalConstant(lit)
}

// inferType gives `var` declarations the type of their initializer.
func (l *lowerer) inferType(init syntax.Expr) *syntax.Type {
	init = syntax.RemoveParentheses(init)
	if t := l.model.TypeOf(init); t != nil {
		return t
	}
	if lit, ok := init.(*syntax.Literal); ok {
		switch lit.Kind {
		case syntax.LitBool:
			return &syntax.Type{Name: "bool", Kind: syntax.TypeBool}
		case syntax.LitInt, syntax.LitReal, syntax.LitChar:
			return &syntax.Type{Name: "int", Kind: syntax.TypeNumeric}
		case syntax.LitString:
			return &syntax.Type{Name: "string", Kind: syntax.TypeString}
		}
	}
	return nil
}
