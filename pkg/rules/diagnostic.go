package rules

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// Diagnostic is one finding: a rule key, a message and the source range it
// points at.
type Diagnostic struct {
	RuleID    string      `json:"rule_id" msgpack:"rule_id"`
	Message   string      `json:"message" msgpack:"message"`
	Span      syntax.Span `json:"span" msgpack:"span"`
	Procedure string      `json:"procedure,omitempty" msgpack:"procedure,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d %s %s", d.Span.StartLine, d.Span.StartCol, d.RuleID, d.Message)
}

// SortDiagnostics orders findings by position, then by rule key.
func SortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i].Span, ds[j].Span
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		if a.StartCol != b.StartCol {
			return a.StartCol < b.StartCol
		}
		return ds[i].RuleID < ds[j].RuleID
	})
}
