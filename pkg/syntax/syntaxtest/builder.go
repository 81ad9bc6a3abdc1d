// Package syntaxtest builds procedure trees and their semantic model by hand
// for tests of the graph builder, the walker and the rules.
package syntaxtest

import (
	"strconv"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// Builder creates nodes with distinct spans and records symbols and types in
// a MapModel. Name resolution is flat: the latest declaration of a name wins.
type Builder struct {
	Model  *syntax.MapModel
	params []*syntax.Symbol
	scope  map[string]*syntax.Symbol
	line   int
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{
		Model: syntax.NewMapModel(),
		scope: make(map[string]*syntax.Symbol),
	}
}

// Span hands out a fresh single-line span.
func (b *Builder) Span() syntax.Span {
	b.line++
	return syntax.Span{StartLine: b.line, StartCol: 1, EndLine: b.line, EndCol: 80}
}

func (b *Builder) declare(name, typ string, kind syntax.SymbolKind) *syntax.Symbol {
	s := &syntax.Symbol{Name: name, Kind: kind, Type: syntax.ParseType(typ), Decl: b.Span()}
	b.scope[name] = s
	return s
}

// Param declares a procedure parameter.
func (b *Builder) Param(name, typ string) *syntax.Symbol {
	s := b.declare(name, typ, syntax.SymbolParameter)
	b.params = append(b.params, s)
	return s
}

// Field declares a field; reads of it are not tracked.
func (b *Builder) Field(name, typ string) *syntax.Symbol {
	return b.declare(name, typ, syntax.SymbolField)
}

// Procedure wraps body with the parameters declared so far.
func (b *Builder) Procedure(name string, body syntax.Node) *syntax.Procedure {
	return &syntax.Procedure{Span: b.Span(), Name: name, Params: b.params, Body: body}
}

// Ident references a previously declared name. Unknown names stay unbound.
func (b *Builder) Ident(name string) *syntax.Identifier {
	id := &syntax.Identifier{Span: b.Span(), Name: name}
	if s, ok := b.scope[name]; ok {
		b.Model.Bind(id, s)
	}
	return id
}

// Var declares a local and returns the declaration statement.
func (b *Builder) Var(name, typ string, init syntax.Expr) *syntax.LocalDecl {
	s := b.declare(name, typ, syntax.SymbolLocal)
	d := &syntax.VarDeclarator{Span: s.Decl, Name: name, Init: init}
	b.Model.Bind(d, s)
	return &syntax.LocalDecl{Span: b.Span(), Type: typ, Vars: []*syntax.VarDeclarator{d}}
}

// Declarator declares a local without a statement, for foreach variables.
func (b *Builder) Declarator(name, typ string) *syntax.VarDeclarator {
	s := b.declare(name, typ, syntax.SymbolLocal)
	d := &syntax.VarDeclarator{Span: s.Decl, Name: name}
	b.Model.Bind(d, s)
	return d
}

func (b *Builder) Null() *syntax.Literal {
	return &syntax.Literal{Span: b.Span(), Kind: syntax.LitNull, Value: "null"}
}

func (b *Builder) Bool(v bool) *syntax.Literal {
	return &syntax.Literal{Span: b.Span(), Kind: syntax.LitBool, Value: strconv.FormatBool(v)}
}

func (b *Builder) Int(v int) *syntax.Literal {
	lit := &syntax.Literal{Span: b.Span(), Kind: syntax.LitInt, Value: strconv.Itoa(v)}
	b.Model.SetType(lit, syntax.ParseType("int"))
	return lit
}

func (b *Builder) Str(v string) *syntax.Literal {
	lit := &syntax.Literal{Span: b.Span(), Kind: syntax.LitString, Value: v}
	b.Model.SetType(lit, syntax.ParseType("string"))
	return lit
}

// Member builds x.name and types the well-known nullable and collection
// members.
func (b *Builder) Member(x syntax.Expr, name string) *syntax.MemberAccess {
	ma := &syntax.MemberAccess{Span: b.Span(), X: x, Name: name}
	switch name {
	case "HasValue":
		b.Model.SetType(ma, syntax.ParseType("bool"))
	case "Length", "Count":
		b.Model.SetType(ma, syntax.ParseType("int"))
	}
	return ma
}

// Call invokes recv.name(args...). A nil receiver yields name(args...).
func (b *Builder) Call(recv syntax.Expr, name string, args ...syntax.Expr) *syntax.Invocation {
	var fun syntax.Expr
	if recv == nil {
		fun = &syntax.Identifier{Span: b.Span(), Name: name}
	} else {
		fun = &syntax.MemberAccess{Span: b.Span(), X: recv, Name: name}
	}
	return &syntax.Invocation{Span: b.Span(), Fun: fun, Args: args}
}

// Returning records the result type of an invocation.
func (b *Builder) Returning(inv *syntax.Invocation, typ string) *syntax.Invocation {
	b.Model.SetType(inv, syntax.ParseType(typ))
	return inv
}

// Extension marks an invocation as an extension method call.
func (b *Builder) Extension(inv *syntax.Invocation) *syntax.Invocation {
	b.Model.MarkExtension(inv)
	return inv
}

func (b *Builder) New(typ string, args ...syntax.Expr) *syntax.ObjectCreation {
	oc := &syntax.ObjectCreation{Span: b.Span(), Type: typ, Args: args}
	b.Model.SetType(oc, syntax.ParseType(typ))
	return oc
}

func (b *Builder) Index(x syntax.Expr, idx ...syntax.Expr) *syntax.ElementAccess {
	return &syntax.ElementAccess{Span: b.Span(), X: x, Index: idx}
}

func (b *Builder) Bin(op string, x, y syntax.Expr) *syntax.Binary {
	return &syntax.Binary{Span: b.Span(), Op: op, X: x, Y: y}
}

func (b *Builder) Not(x syntax.Expr) *syntax.Unary {
	return &syntax.Unary{Span: b.Span(), Op: "!", X: x}
}

func (b *Builder) Inc(x syntax.Expr) *syntax.Postfix {
	return &syntax.Postfix{Span: b.Span(), Op: "++", X: x}
}

func (b *Builder) Assign(left, right syntax.Expr) *syntax.Assign {
	return &syntax.Assign{Span: b.Span(), Op: "=", Left: left, Right: right}
}

func (b *Builder) Cond(c, then, els syntax.Expr) *syntax.Conditional {
	return &syntax.Conditional{Span: b.Span(), Cond: c, Then: then, Else: els}
}

// CondAccess builds x?.name.
func (b *Builder) CondAccess(x syntax.Expr, name string) *syntax.ConditionalAccess {
	return &syntax.ConditionalAccess{Span: b.Span(), X: x, WhenNotNull: &syntax.MemberBinding{Span: b.Span(), Name: name}}
}

func (b *Builder) Is(x syntax.Expr, p syntax.Pattern) *syntax.IsPattern {
	return &syntax.IsPattern{Span: b.Span(), X: x, Pattern: p}
}

func (b *Builder) ConstPat(v syntax.Expr) *syntax.ConstantPattern {
	return &syntax.ConstantPattern{Span: b.Span(), Value: v}
}

// DeclPat builds `typ name` and declares name as a local.
func (b *Builder) DeclPat(typ, name string) *syntax.DeclarationPattern {
	p := &syntax.DeclarationPattern{Span: b.Span(), Type: typ, Name: name}
	if name != "" {
		b.Model.Bind(p, b.declare(name, typ, syntax.SymbolLocal))
	}
	return p
}

func (b *Builder) NotPat(p syntax.Pattern) *syntax.NotPattern {
	return &syntax.NotPattern{Span: b.Span(), Pattern: p}
}

// PropPat builds `{ member: p }`.
func (b *Builder) PropPat(member string, p syntax.Pattern) *syntax.RecursivePattern {
	return &syntax.RecursivePattern{Span: b.Span(), Props: []*syntax.Subpattern{{Span: b.Span(), Member: member, Pattern: p}}}
}

func (b *Builder) Expr(x syntax.Expr) *syntax.ExprStmt {
	return &syntax.ExprStmt{Span: b.Span(), X: x}
}

func (b *Builder) Block(stmts ...syntax.Stmt) *syntax.Block {
	return &syntax.Block{Span: b.Span(), Stmts: stmts}
}

func (b *Builder) If(cond syntax.Expr, then, els syntax.Stmt) *syntax.If {
	return &syntax.If{Span: b.Span(), Cond: cond, Then: then, Else: els}
}

func (b *Builder) While(cond syntax.Expr, body syntax.Stmt) *syntax.While {
	return &syntax.While{Span: b.Span(), Cond: cond, Body: body}
}

func (b *Builder) Do(body syntax.Stmt, cond syntax.Expr) *syntax.Do {
	return &syntax.Do{Span: b.Span(), Body: body, Cond: cond}
}

func (b *Builder) For(init []syntax.Stmt, cond syntax.Expr, post []syntax.Stmt, body syntax.Stmt) *syntax.For {
	return &syntax.For{Span: b.Span(), Init: init, Cond: cond, Post: post, Body: body}
}

func (b *Builder) Foreach(v *syntax.VarDeclarator, coll syntax.Expr, body syntax.Stmt) *syntax.Foreach {
	return &syntax.Foreach{Span: b.Span(), Var: v, Collection: coll, Body: body}
}

func (b *Builder) Return(x syntax.Expr) *syntax.Return {
	return &syntax.Return{Span: b.Span(), X: x}
}

func (b *Builder) Throw(x syntax.Expr) *syntax.Throw {
	return &syntax.Throw{Span: b.Span(), X: x}
}

func (b *Builder) Break() *syntax.Break { return &syntax.Break{Span: b.Span()} }

func (b *Builder) Continue() *syntax.Continue { return &syntax.Continue{Span: b.Span()} }

func (b *Builder) Goto(label string) *syntax.Goto {
	return &syntax.Goto{Span: b.Span(), Kind: syntax.GotoLabel, Label: label}
}

func (b *Builder) Label(label string, s syntax.Stmt) *syntax.Labeled {
	return &syntax.Labeled{Span: b.Span(), Label: label, Stmt: s}
}

func (b *Builder) Try(body *syntax.Block, finally *syntax.Block, catches ...*syntax.Catch) *syntax.Try {
	return &syntax.Try{Span: b.Span(), Body: body, Catches: catches, Finally: finally}
}

// Catch builds a catch clause; typ may be empty for `catch { }`.
func (b *Builder) Catch(typ string, body *syntax.Block) *syntax.Catch {
	return &syntax.Catch{Span: b.Span(), Type: typ, Body: body}
}

func (b *Builder) Lock(x syntax.Expr, body syntax.Stmt) *syntax.Lock {
	return &syntax.Lock{Span: b.Span(), X: x, Body: body}
}

func (b *Builder) Using(decl *syntax.LocalDecl, body syntax.Stmt) *syntax.Using {
	return &syntax.Using{Span: b.Span(), Decl: decl, Body: body}
}

func (b *Builder) Switch(x syntax.Expr, sections ...*syntax.SwitchSection) *syntax.Switch {
	return &syntax.Switch{Span: b.Span(), X: x, Sections: sections}
}

// Case builds a switch section; no case expressions means `default:`.
func (b *Builder) Case(cases []syntax.Expr, body ...syntax.Stmt) *syntax.SwitchSection {
	return &syntax.SwitchSection{Span: b.Span(), Cases: cases, Default: len(cases) == 0, Body: body}
}
