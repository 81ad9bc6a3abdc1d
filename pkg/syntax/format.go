package syntax

import (
	"fmt"
	"strings"
)

// Format renders a node as compact, deterministic source-like text. It is
// used for graph dumps and diagnostic messages, so it never depends on
// original whitespace.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func format(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
	case *Identifier:
		sb.WriteString(n.Name)
	case *Literal:
		switch n.Kind {
		case LitNull:
			sb.WriteString("null")
		case LitString:
			sb.WriteString(fmt.Sprintf("%q", n.Value))
		case LitChar:
			sb.WriteString("'" + n.Value + "'")
		default:
			sb.WriteString(n.Value)
		}
	case *This:
		sb.WriteString("this")
	case *MemberAccess:
		format(sb, n.X)
		sb.WriteString("." + n.Name)
	case *ConditionalAccess:
		format(sb, n.X)
		sb.WriteString("?")
		format(sb, n.WhenNotNull)
	case *MemberBinding:
		sb.WriteString("." + n.Name)
	case *ElementBinding:
		sb.WriteString("[")
		formatList(sb, n.Index)
		sb.WriteString("]")
	case *Invocation:
		format(sb, n.Fun)
		sb.WriteString("(")
		formatList(sb, n.Args)
		sb.WriteString(")")
	case *RefArg:
		sb.WriteString(n.Modifier + " ")
		if n.Declares {
			sb.WriteString("var ")
		}
		format(sb, n.Target)
	case *Binary:
		format(sb, n.X)
		sb.WriteString(" " + n.Op + " ")
		format(sb, n.Y)
	case *Unary:
		sb.WriteString(n.Op)
		format(sb, n.X)
	case *Postfix:
		format(sb, n.X)
		sb.WriteString(n.Op)
	case *Assign:
		format(sb, n.Left)
		sb.WriteString(" " + n.Op + " ")
		format(sb, n.Right)
	case *Paren:
		sb.WriteString("(")
		format(sb, n.X)
		sb.WriteString(")")
	case *Conditional:
		format(sb, n.Cond)
		sb.WriteString(" ? ")
		format(sb, n.Then)
		sb.WriteString(" : ")
		format(sb, n.Else)
	case *IsPattern:
		format(sb, n.X)
		sb.WriteString(" is ")
		format(sb, n.Pattern)
	case *ObjectCreation:
		sb.WriteString("new " + n.Type + "(")
		formatList(sb, n.Args)
		sb.WriteString(")")
		if n.Initializers > 0 {
			sb.WriteString(" {...}")
		}
	case *ElementAccess:
		format(sb, n.X)
		sb.WriteString("[")
		formatList(sb, n.Index)
		sb.WriteString("]")
	case *Cast:
		sb.WriteString("(" + n.Type + ")")
		format(sb, n.X)
	case *As:
		format(sb, n.X)
		sb.WriteString(" as " + n.Type)
	case *Lambda:
		sb.WriteString(n.Text)
	case *Opaque:
		sb.WriteString(n.Kind + "(")
		formatList(sb, n.Operands)
		sb.WriteString(")")
	case *UnsupportedExpr:
		sb.WriteString("<" + n.Kind + ">")

	case *ConstantPattern:
		format(sb, n.Value)
	case *DeclarationPattern:
		sb.WriteString(n.Type)
		if n.Name != "" {
			sb.WriteString(" " + n.Name)
		}
	case *VarPattern:
		sb.WriteString("var " + n.Name)
	case *DiscardPattern:
		sb.WriteString("_")
	case *NotPattern:
		sb.WriteString("not ")
		format(sb, n.Pattern)
	case *BinaryPattern:
		format(sb, n.Left)
		sb.WriteString(" " + n.Op + " ")
		format(sb, n.Right)
	case *RelationalPattern:
		sb.WriteString(n.Op + " ")
		format(sb, n.Value)
	case *RecursivePattern:
		if n.Type != "" {
			sb.WriteString(n.Type + " ")
		}
		sb.WriteString("{")
		for i, p := range n.Props {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(" " + p.Member + ": ")
			format(sb, p.Pattern)
		}
		sb.WriteString(" }")
		if n.Name != "" {
			sb.WriteString(" " + n.Name)
		}

	case *VarDeclarator:
		sb.WriteString(n.Name)
		if n.Init != nil {
			sb.WriteString(" = ")
			format(sb, n.Init)
		}
	case *ExprStmt:
		format(sb, n.X)
		sb.WriteString(";")
	case *Return:
		sb.WriteString("return")
		if n.X != nil {
			sb.WriteString(" ")
			format(sb, n.X)
		}
	case *Throw:
		sb.WriteString("throw")
		if n.X != nil {
			sb.WriteString(" ")
			format(sb, n.X)
		}
	case *Break:
		sb.WriteString("break")
	case *Continue:
		sb.WriteString("continue")
	case *Goto:
		switch n.Kind {
		case GotoCase:
			sb.WriteString("goto case ")
			format(sb, n.Case)
		case GotoDefault:
			sb.WriteString("goto default")
		default:
			sb.WriteString("goto " + n.Label)
		}
	case *If:
		sb.WriteString("if (")
		format(sb, n.Cond)
		sb.WriteString(")")
	case *While:
		sb.WriteString("while (")
		format(sb, n.Cond)
		sb.WriteString(")")
	case *Do:
		sb.WriteString("do while (")
		format(sb, n.Cond)
		sb.WriteString(")")
	case *For:
		sb.WriteString("for (")
		format(sb, n.Cond)
		sb.WriteString(")")
	case *Foreach:
		sb.WriteString("foreach (")
		if n.Var != nil {
			sb.WriteString(n.Var.Name)
		}
		sb.WriteString(" in ")
		format(sb, n.Collection)
		sb.WriteString(")")
	case *Switch:
		sb.WriteString("switch (")
		format(sb, n.X)
		sb.WriteString(")")
	case *Lock:
		sb.WriteString("lock (")
		format(sb, n.X)
		sb.WriteString(")")
	case *Using:
		sb.WriteString("using (")
		if n.Decl != nil {
			for i, v := range n.Decl.Vars {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(v.Name)
			}
		} else {
			format(sb, n.X)
		}
		sb.WriteString(")")
	case *Catch:
		sb.WriteString("catch")
		if n.Type != "" {
			sb.WriteString(" (" + n.Type)
			if n.Var != "" {
				sb.WriteString(" " + n.Var)
			}
			sb.WriteString(")")
		}
		if n.Filter != nil {
			sb.WriteString(" when (")
			format(sb, n.Filter)
			sb.WriteString(")")
		}
	case *Try:
		sb.WriteString("try")
	case *UnsupportedStmt:
		sb.WriteString("<" + n.Kind + ">")
	case fmt.Stringer:
		sb.WriteString(n.String())
	default:
		sb.WriteString(fmt.Sprintf("<%T>", n))
	}
}

func formatList(sb *strings.Builder, xs []Expr) {
	for i, x := range xs {
		if i > 0 {
			sb.WriteString(", ")
		}
		format(sb, x)
	}
}
