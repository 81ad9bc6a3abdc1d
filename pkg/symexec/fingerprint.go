package symexec

import (
	"strconv"
	"strings"
)

// Fingerprint returns a canonical description of the state's content. Two
// states with the same stack shape, bindings, constraints and pending
// finally targets have the same fingerprint even when their values were
// created separately: values are renamed in the order they are first
// reached from the stack (bottom up), then from the bindings in symbol
// order, then through relation operands. Values no longer reachable are
// ignored.
func (s *ProgramState) Fingerprint() string {
	if s.fp != "" {
		return s.fp
	}
	f := fingerprinter{s: s, names: make(map[SymbolicValue]string)}

	var sb strings.Builder
	sb.WriteString("S[")
	for i, v := range s.stack {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(f.name(v))
	}
	sb.WriteString("] B[")
	for i, sym := range s.Symbols() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(sym.Name)
		sb.WriteByte('@')
		sb.WriteString(sym.Decl.String())
		sb.WriteByte('=')
		sb.WriteString(f.name(s.bindings[sym]))
	}
	sb.WriteString("] V[")
	// Relation operands discovered while describing a value are appended
	// to order and described in turn.
	for i := 0; i < len(f.order); i++ {
		v := f.order[i]
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(f.names[v])
		if info := s.arena.info(v); info.rel != RelNone {
			sb.WriteString("=" + info.rel.String() + info.op + "(")
			sb.WriteString(f.name(info.left))
			if info.right != NoValue {
				sb.WriteString("," + f.name(info.right))
			}
			sb.WriteString(")")
		}
		for _, c := range s.Constraints(v) {
			sb.WriteString("|" + c.String())
		}
	}
	sb.WriteString("] R[")
	for i, r := range s.resume {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(r.Exit.ID) + ">" + strconv.Itoa(r.Target.ID))
	}
	sb.WriteString("]")

	s.fp = sb.String()
	return s.fp
}

type fingerprinter struct {
	s     *ProgramState
	names map[SymbolicValue]string
	order []SymbolicValue
}

func (f *fingerprinter) name(v SymbolicValue) string {
	if v == NoValue || isConstant(v) {
		return v.String()
	}
	if n, ok := f.names[v]; ok {
		return n
	}
	n := "v" + strconv.Itoa(len(f.order))
	f.names[v] = n
	f.order = append(f.order, v)
	return n
}
