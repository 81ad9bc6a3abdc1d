package syntax

// RemoveParentheses strips any number of enclosing parentheses.
func RemoveParentheses(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok {
			return e
		}
		e = p.X
	}
}

// IsNullLiteral reports whether e is a (possibly parenthesized) null literal.
func IsNullLiteral(e Expr) bool {
	lit, ok := RemoveParentheses(e).(*Literal)
	return ok && lit.Kind == LitNull
}

// IsBoolLiteral reports whether e is a (possibly parenthesized) true/false
// literal.
func IsBoolLiteral(e Expr) bool {
	lit, ok := RemoveParentheses(e).(*Literal)
	return ok && lit.Kind == LitBool
}

// IsNameof reports whether e is a `nameof(...)` invocation.
func IsNameof(e Expr) bool {
	inv, ok := e.(*Invocation)
	if !ok {
		return false
	}
	id, ok := inv.Fun.(*Identifier)
	return ok && id.Name == "nameof"
}

// IsCatchingAllExceptions reports whether a catch clause handles every
// exception: no declaration at all, or Exception / System.Exception with no
// filter.
func IsCatchingAllExceptions(c *Catch) bool {
	if c.Type == "" {
		return c.Filter == nil
	}
	return c.Filter == nil && (c.Type == "Exception" || c.Type == "System.Exception")
}

// CanThrow reports whether evaluating n may raise an exception that a
// surrounding try statement has to account for.
func CanThrow(n Node) bool {
	switch n := n.(type) {
	case *Invocation:
		return !IsNameof(n)
	case *ObjectCreation, *MemberAccess, *MemberBinding, *ElementAccess, *ElementBinding,
		*Cast, *Lock:
		return true
	case *Opaque:
		return n.Kind == "await"
	}
	return false
}

// ReceiverOf returns the receiver expression an invocation is called on,
// or nil for calls without an explicit receiver.
func ReceiverOf(inv *Invocation) Expr {
	if ma, ok := inv.Fun.(*MemberAccess); ok {
		return ma.X
	}
	return nil
}

// MethodName returns the invoked method's simple name.
func MethodName(inv *Invocation) string {
	switch f := inv.Fun.(type) {
	case *Identifier:
		return f.Name
	case *MemberAccess:
		return f.Name
	case *MemberBinding:
		return f.Name
	}
	return ""
}
