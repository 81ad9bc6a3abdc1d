package cfg

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// ErrUnsupportedSyntax is returned (wrapped) when a body contains a construct
// the builder does not model. Callers skip the procedure.
var ErrUnsupportedSyntax = errors.New("unsupported syntax")

// UnsupportedError names the construct that stopped the build.
type UnsupportedError struct {
	Construct string
	Span      syntax.Span
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported syntax at %s: %s", e.Span, e.Construct)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupportedSyntax }

// InvariantError reports a broken graph invariant. It is a defect, never an
// expected outcome.
type InvariantError struct {
	Block  int
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Block < 0 {
		return "cfg invariant violated: " + e.Reason
	}
	return fmt.Sprintf("cfg invariant violated at block %d: %s", e.Block, e.Reason)
}

func unsupported(n syntax.Node, construct string) error {
	var sp syntax.Span
	if n != nil {
		sp = n.Pos()
	}
	return &UnsupportedError{Construct: construct, Span: sp}
}
