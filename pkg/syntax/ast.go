// Package syntax defines the procedure-level syntax tree consumed by the
// flow analysis. Front-ends lower their own parse trees into these nodes
// and answer symbol and type questions through a SemanticModel.
package syntax

import "fmt"

// Span is a source range. Lines and columns are 1-based.
type Span struct {
	StartLine int `json:"start_line" msgpack:"start_line"`
	StartCol  int `json:"start_col" msgpack:"start_col"`
	EndLine   int `json:"end_line" msgpack:"end_line"`
	EndCol    int `json:"end_col" msgpack:"end_col"`
}

// Pos returns the span itself so that nodes embedding a Span satisfy Node.
func (s Span) Pos() Span { return s }

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
}

// Before reports whether s starts before o.
func (s Span) Before(o Span) bool {
	if s.StartLine != o.StartLine {
		return s.StartLine < o.StartLine
	}
	return s.StartCol < o.StartCol
}

// Node is any element of a procedure tree.
type Node interface {
	Pos() Span
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Pattern is a pattern used by `is` expressions and property subpatterns.
type Pattern interface {
	Node
	patternNode()
}

// Procedure is one analyzable body: a method, constructor, accessor or
// local function. Body is either a *Block or an Expr for expression-bodied
// members.
type Procedure struct {
	Span
	Name       string
	Params     []*Symbol
	ReturnType *Type
	Body       Node
}

// ---- statements ----

type Block struct {
	Span
	Stmts []Stmt
}

type ExprStmt struct {
	Span
	X Expr
}

// LocalDecl declares one or more locals.
type LocalDecl struct {
	Span
	Type string
	Vars []*VarDeclarator
}

// VarDeclarator is a single declared variable with an optional initializer.
// It is also emitted as an instruction that binds the variable.
type VarDeclarator struct {
	Span
	Name string
	Init Expr
}

type If struct {
	Span
	Cond Expr
	Then Stmt
	Else Stmt
}

type While struct {
	Span
	Cond Expr
	Body Stmt
}

type Do struct {
	Span
	Body Stmt
	Cond Expr
}

// For holds initializer statements (declarations or expression statements),
// an optional condition and the incrementor statements.
type For struct {
	Span
	Init []Stmt
	Cond Expr
	Post []Stmt
	Body Stmt
}

type Foreach struct {
	Span
	Var        *VarDeclarator
	Collection Expr
	Body       Stmt
}

type Return struct {
	Span
	X Expr
}

type Throw struct {
	Span
	X Expr
}

type Break struct{ Span }

type Continue struct{ Span }

// GotoKind distinguishes `goto label`, `goto case x` and `goto default`.
type GotoKind int

const (
	GotoLabel GotoKind = iota
	GotoCase
	GotoDefault
)

type Goto struct {
	Span
	Kind  GotoKind
	Label string
	Case  Expr
}

type Labeled struct {
	Span
	Label string
	Stmt  Stmt
}

type Try struct {
	Span
	Body    *Block
	Catches []*Catch
	Finally *Block
}

// Catch is a catch clause. Type and Var are empty when not declared.
// The clause itself is emitted as the instruction binding Var.
type Catch struct {
	Span
	Type   string
	Var    string
	Filter Expr
	Body   *Block
}

// Using covers both the declaration and the expression form. Body holds the
// rest of the enclosing block for `using var` declarations.
type Using struct {
	Span
	Decl *LocalDecl
	X    Expr
	Body Stmt
}

type Lock struct {
	Span
	X    Expr
	Body Stmt
}

type Switch struct {
	Span
	X        Expr
	Sections []*SwitchSection
}

// SwitchSection is a group of case labels sharing one body.
type SwitchSection struct {
	Span
	Cases   []Expr
	Default bool
	Body    []Stmt
}

type Empty struct{ Span }

// UnsupportedStmt marks a statement the front-end could not lower. Building
// a graph that contains one fails.
type UnsupportedStmt struct {
	Span
	Kind string
}

// ---- expressions ----

type Identifier struct {
	Span
	Name string
}

// LitKind is the kind of a literal.
type LitKind int

const (
	LitNull LitKind = iota
	LitBool
	LitInt
	LitReal
	LitString
	LitChar
)

type Literal struct {
	Span
	Kind  LitKind
	Value string
}

type MemberAccess struct {
	Span
	X    Expr
	Name string
}

// ConditionalAccess is `X?.rest`. WhenNotNull is evaluated with X as the
// receiver and refers to it through MemberBinding or ElementBinding.
type ConditionalAccess struct {
	Span
	X           Expr
	WhenNotNull Expr
}

// MemberBinding is the `.Name` part of a conditional access.
type MemberBinding struct {
	Span
	Name string
}

// ElementBinding is the `[i]` part of a conditional access.
type ElementBinding struct {
	Span
	Index []Expr
}

type Invocation struct {
	Span
	Fun  Expr
	Args []Expr
}

// RefArg is an argument passed with `ref`, `out` or `in`. Target is usually
// an Identifier; Declares is set for `out var x`.
type RefArg struct {
	Span
	Modifier string
	Target   Expr
	Declares bool
}

type Binary struct {
	Span
	Op string
	X  Expr
	Y  Expr
}

// Unary is a prefix operator.
type Unary struct {
	Span
	Op string
	X  Expr
}

// Postfix is `x++`, `x--` or the null-forgiving `x!`.
type Postfix struct {
	Span
	Op string
	X  Expr
}

type Assign struct {
	Span
	Op    string
	Left  Expr
	Right Expr
}

type Paren struct {
	Span
	X Expr
}

type Conditional struct {
	Span
	Cond Expr
	Then Expr
	Else Expr
}

type IsPattern struct {
	Span
	X       Expr
	Pattern Pattern
}

// ObjectCreation is `new T(args) { ... }`. Initializers counts elements of a
// collection or object initializer.
type ObjectCreation struct {
	Span
	Type         string
	Args         []Expr
	Initializers int
}

type ElementAccess struct {
	Span
	X     Expr
	Index []Expr
}

type Cast struct {
	Span
	Type string
	X    Expr
}

type As struct {
	Span
	X    Expr
	Type string
}

type This struct{ Span }

type Lambda struct {
	Span
	Text string
}

// Opaque is an expression whose operands are evaluated but whose result is
// not modeled beyond nullability: await, typeof, interpolated strings, tuples
// and the like.
type Opaque struct {
	Span
	Kind     string
	Operands []Expr
	NotNull  bool
}

// UnsupportedExpr marks an expression with no known semantics. Paths that
// evaluate it are dropped.
type UnsupportedExpr struct {
	Span
	Kind string
}

// ---- patterns ----

type ConstantPattern struct {
	Span
	Value Expr
}

// DeclarationPattern is `T x` or a bare type pattern when Name is empty.
type DeclarationPattern struct {
	Span
	Type string
	Name string
}

type VarPattern struct {
	Span
	Name string
}

type DiscardPattern struct{ Span }

type NotPattern struct {
	Span
	Pattern Pattern
}

// BinaryPattern is `p and q` or `p or q`.
type BinaryPattern struct {
	Span
	Op    string
	Left  Pattern
	Right Pattern
}

// RelationalPattern is `< 5`, `>= x`, ...
type RelationalPattern struct {
	Span
	Op    string
	Value Expr
}

// RecursivePattern is `T { Member: pattern, ... } name`. Type and Name may be
// empty; an empty property list still tests for non-null.
type RecursivePattern struct {
	Span
	Type  string
	Props []*Subpattern
	Name  string
}

type Subpattern struct {
	Span
	Member  string
	Pattern Pattern
}

func (*Block) stmtNode()           {}
func (*ExprStmt) stmtNode()        {}
func (*LocalDecl) stmtNode()       {}
func (*If) stmtNode()              {}
func (*While) stmtNode()           {}
func (*Do) stmtNode()              {}
func (*For) stmtNode()             {}
func (*Foreach) stmtNode()         {}
func (*Return) stmtNode()          {}
func (*Throw) stmtNode()           {}
func (*Break) stmtNode()           {}
func (*Continue) stmtNode()        {}
func (*Goto) stmtNode()            {}
func (*Labeled) stmtNode()         {}
func (*Try) stmtNode()             {}
func (*Using) stmtNode()           {}
func (*Lock) stmtNode()            {}
func (*Switch) stmtNode()          {}
func (*Empty) stmtNode()           {}
func (*UnsupportedStmt) stmtNode() {}

func (*Identifier) exprNode()        {}
func (*Literal) exprNode()           {}
func (*MemberAccess) exprNode()      {}
func (*ConditionalAccess) exprNode() {}
func (*MemberBinding) exprNode()     {}
func (*ElementBinding) exprNode()    {}
func (*Invocation) exprNode()        {}
func (*RefArg) exprNode()            {}
func (*Binary) exprNode()            {}
func (*Unary) exprNode()             {}
func (*Postfix) exprNode()           {}
func (*Assign) exprNode()            {}
func (*Paren) exprNode()             {}
func (*Conditional) exprNode()       {}
func (*IsPattern) exprNode()         {}
func (*ObjectCreation) exprNode()    {}
func (*ElementAccess) exprNode()     {}
func (*Cast) exprNode()              {}
func (*As) exprNode()                {}
func (*This) exprNode()              {}
func (*Lambda) exprNode()            {}
func (*Opaque) exprNode()            {}
func (*UnsupportedExpr) exprNode()   {}

func (*ConstantPattern) patternNode()    {}
func (*DeclarationPattern) patternNode() {}
func (*VarPattern) patternNode()         {}
func (*DiscardPattern) patternNode()     {}
func (*NotPattern) patternNode()         {}
func (*BinaryPattern) patternNode()      {}
func (*RelationalPattern) patternNode()  {}
func (*RecursivePattern) patternNode()   {}
