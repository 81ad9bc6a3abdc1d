// Package rules holds the checks that turn a symbolic walk into findings,
// and the runner that executes them for one procedure.
package rules

import (
	"errors"
	"fmt"
	"sort"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// ErrUnknownRule is returned when a configuration names a rule that is not
// registered.
var ErrUnknownRule = errors.New("unknown rule")

// Analyzer is a check plugged into one walk. Besides these methods an
// analyzer implements whichever symexec observer interfaces it needs.
type Analyzer interface {
	// ID returns the rule key, e.g. "S2259".
	ID() string
	// SupportsPartialResults reports whether findings stay valid when the
	// walk did not explore every path.
	SupportsPartialResults() bool
	// Diagnostics returns the findings collected so far.
	Diagnostics() []Diagnostic
}

// Factory creates a fresh analyzer. Every procedure gets its own instances.
type Factory func() Analyzer

// Registry maps rule keys to analyzer factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with every built-in rule.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(NullDereferenceID, NewNullDereference)
	r.Register(EmptyNullableValueAccessID, NewEmptyNullableValueAccess)
	r.Register(ConstantConditionID, NewConstantCondition)
	r.Register(EmptyCollectionAccessID, NewEmptyCollectionAccess)
	return r
}

// Register adds or replaces a rule.
func (r *Registry) Register(id string, f Factory) {
	r.factories[id] = f
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.factories[id]
	return ok
}

// IDs returns the registered rule keys in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New instantiates the named rules, or every rule when ids is empty.
func (r *Registry) New(ids ...string) ([]Analyzer, error) {
	if len(ids) == 0 {
		ids = r.IDs()
	}
	out := make([]Analyzer, 0, len(ids))
	for _, id := range ids {
		f, ok := r.factories[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRule, id)
		}
		out = append(out, f())
	}
	return out, nil
}

// reporter collects the findings of one rule, at most one per location.
type reporter struct {
	id    string
	seen  map[syntax.Span]bool
	diags []Diagnostic
}

func newReporter(id string) reporter {
	return reporter{id: id, seen: make(map[syntax.Span]bool)}
}

func (r *reporter) ID() string { return r.id }

func (r *reporter) report(at syntax.Span, format string, args ...any) {
	if r.seen[at] {
		return
	}
	r.seen[at] = true
	r.diags = append(r.diags, Diagnostic{RuleID: r.id, Message: fmt.Sprintf(format, args...), Span: at})
}

func (r *reporter) Diagnostics() []Diagnostic {
	out := append([]Diagnostic(nil), r.diags...)
	SortDiagnostics(out)
	return out
}
