// Package symexec explores the feasible paths of a control flow graph with
// symbolic values. A Walker drives the exploration over (program point,
// program state) pairs; checks observe it through the observer interfaces
// and may prune paths.
package symexec

import (
	"context"
	"errors"
	"fmt"

	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// Default exploration budgets.
const (
	DefaultMaxSteps       = 10000
	DefaultMaxPointVisits = 6
)

var (
	// errDropPath abandons the current path at an operation whose effect is
	// unknown.
	errDropPath = errors.New("operation effect unknown")
	// errUnsupportedOperation aborts the walk: the graph itself cannot be
	// interpreted.
	errUnsupportedOperation = errors.New("unsupported operation")
)

// Options bounds a walk and seeds its initial state.
type Options struct {
	// MaxSteps caps the number of processed exploded nodes.
	MaxSteps int
	// MaxPointVisits caps how many distinct states one program point may
	// be visited with.
	MaxPointVisits int
	// Parameters are bound to fresh values in the initial state.
	Parameters []*syntax.Symbol
}

func (o Options) withDefaults() Options {
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.MaxPointVisits <= 0 {
		o.MaxPointVisits = DefaultMaxPointVisits
	}
	return o
}

type node struct {
	point ProgramPoint
	state *ProgramState
}

// Walker symbolically executes one graph. It is single-use and not safe for
// concurrent use; every procedure gets its own walker.
type Walker struct {
	graph *cfg.Graph
	model syntax.SemanticModel
	opts  Options
	arena *Arena

	pre    []PreInstructionObserver
	post   []PostInstructionObserver
	branch []BranchObserver
	ended  []ExplorationObserver

	status      Status
	result      Result
	queue       []node
	visited     map[string]struct{}
	pointVisits map[pointKey]int
	headers     map[*cfg.Block]*ProgramState
}

// pointKey groups the states counted against the visit cap. States that
// differ in their pending finally targets leave the finally for different
// places and are capped separately; the targets come from the static try
// nesting, so there are finitely many.
type pointKey struct {
	point  ProgramPoint
	resume string
}

// NewWalker prepares a walk of g. Checks are sorted into the observer lists
// they implement, keeping registration order.
func NewWalker(g *cfg.Graph, model syntax.SemanticModel, opts Options, checks ...Check) *Walker {
	if model == nil {
		model = syntax.NewMapModel()
	}
	w := &Walker{
		graph:       g,
		model:       model,
		opts:        opts.withDefaults(),
		arena:       NewArena(),
		visited:     make(map[string]struct{}),
		pointVisits: make(map[pointKey]int),
		headers:     make(map[*cfg.Block]*ProgramState),
	}
	for _, c := range checks {
		if o, ok := c.(PreInstructionObserver); ok {
			w.pre = append(w.pre, o)
		}
		if o, ok := c.(PostInstructionObserver); ok {
			w.post = append(w.post, o)
		}
		if o, ok := c.(BranchObserver); ok {
			w.branch = append(w.branch, o)
		}
		if o, ok := c.(ExplorationObserver); ok {
			w.ended = append(w.ended, o)
		}
	}
	return w
}

// Status returns where the walker is in its lifecycle.
func (w *Walker) Status() Status { return w.status }

// Arena returns the arena values of this walk live in.
func (w *Walker) Arena() *Arena { return w.arena }

// InitialState binds every parameter to a fresh value. Value-typed
// parameters are known not to be null.
func (w *Walker) InitialState() *ProgramState {
	s := NewProgramState(w.arena)
	for _, p := range w.opts.Parameters {
		var v SymbolicValue
		s, v = w.fresh(s, p.Type)
		s = s.Bind(p, v)
	}
	return s
}

// Walk explores the graph from its entry until the worklist is empty, a
// budget runs out, ctx is done, or the graph turns out to be
// uninterpretable. Exploration observers are always notified. The error is
// non-nil only for invariant violations and wraps ErrInvariant.
func (w *Walker) Walk(ctx context.Context) (Result, error) {
	if w.status != NotStarted {
		return w.result, fmt.Errorf("%w: walker already used", ErrInvariant)
	}
	w.status = Walking
	w.enqueue(ProgramPoint{Block: w.graph.Entry}, w.InitialState())

	var err error
	for len(w.queue) > 0 {
		if ctx.Err() != nil {
			w.abort(Cancelled)
			break
		}
		if w.result.Steps >= w.opts.MaxSteps {
			w.abort(BudgetExceeded)
			break
		}
		n := w.queue[0]
		w.queue[0] = node{}
		w.queue = w.queue[1:]

		if err = w.visit(n); err != nil {
			if errors.Is(err, errUnsupportedOperation) {
				w.abort(UnsupportedOperation)
				err = nil
			} else {
				w.abort(InvariantViolation)
			}
			break
		}
	}
	if w.status == Walking {
		w.status = Completed
	}
	w.result.Status = w.status
	w.queue = nil

	for _, o := range w.ended {
		o.ExplorationEnded(w.result)
	}
	return w.result, err
}

func (w *Walker) abort(reason AbortReason) {
	w.status = Aborted
	w.result.Reason = reason
}

func (w *Walker) enqueue(p ProgramPoint, s *ProgramState) {
	w.queue = append(w.queue, node{point: p, state: s})
}

func (w *Walker) visit(n node) error {
	p, s := n.point, n.state
	if p.Offset == 0 && w.graph.IsLoopHeader(p.Block) {
		s = w.widen(p.Block, s)
	}

	key := p.String() + "|" + s.Fingerprint()
	if _, seen := w.visited[key]; seen {
		return nil
	}
	pk := pointKey{point: p, resume: s.resumeKey()}
	if w.pointVisits[pk] >= w.opts.MaxPointVisits {
		w.result.PointCapReached = true
		return nil
	}
	w.visited[key] = struct{}{}
	w.pointVisits[pk]++
	w.result.Visited++
	w.result.Steps++

	if p.IsTerminator() {
		return w.leave(p.Block, s)
	}
	return w.execute(p, s)
}

// widen keeps numeric knowledge at a loop header only while it matches what
// the first visit of that header saw; anything that changed between
// iterations is forgotten so that the loop converges.
func (w *Walker) widen(b *cfg.Block, s *ProgramState) *ProgramState {
	first, ok := w.headers[b]
	if !ok {
		w.headers[b] = s
		return s
	}
	for _, sym := range s.Symbols() {
		v, _ := s.ValueOf(sym)
		c, has := s.Constraint(v, Numeric)
		if !has {
			continue
		}
		if fv, bound := first.ValueOf(sym); bound {
			if fc, fhas := first.Constraint(fv, Numeric); fhas && fc == c {
				continue
			}
		}
		s = s.RemoveConstraint(v, Numeric)
	}
	return s
}

func (w *Walker) execute(p ProgramPoint, s *ProgramState) error {
	ins := p.Instruction()
	ctx := &InstructionContext{Point: p, Instruction: ins, State: s, Model: w.model}
	for _, o := range w.pre {
		next, ok := o.PreInstruction(ctx)
		if !ok || next == nil {
			return nil
		}
		ctx.State = next
	}

	states, err := w.apply(ins, ctx.State)
	if err != nil {
		if errors.Is(err, errDropPath) {
			w.result.DroppedPaths++
			return nil
		}
		return fmt.Errorf("%s at %s: %w", syntax.Format(ins), p, err)
	}

states:
	for _, st := range states {
		post := &InstructionContext{Point: p, Instruction: ins, State: st, Model: w.model}
		for _, o := range w.post {
			next, ok := o.PostInstruction(post)
			if !ok || next == nil {
				continue states
			}
			post.State = next
		}
		w.enqueue(p.next(), post.State)
	}
	return nil
}

// leave evaluates a block's terminator and enqueues the feasible
// successors.
func (w *Walker) leave(b *cfg.Block, s *ProgramState) error {
	switch b.Kind {
	case cfg.BlockExit:
		return nil

	case cfg.BlockBinaryBranch:
		return w.binaryBranch(b, s)

	case cfg.BlockBranch:
		s, _ = s.Pop()
		for _, e := range b.Successors {
			w.follow(e, s)
		}
		return nil

	case cfg.BlockFinallyExit:
		next, target, ok := s.resumeFrom(b)
		if !ok {
			return fmt.Errorf("%w: finally exit B%d has no pending target", errUnsupportedOperation, b.ID)
		}
		for _, e := range b.Successors {
			if e.To == target {
				w.follow(e, next)
				return nil
			}
		}
		return fmt.Errorf("%w: finally exit B%d cannot reach B%d", errUnsupportedOperation, b.ID, target.ID)

	case cfg.BlockJump:
		s = s.ClearStack()
	}

	for _, e := range b.Successors {
		w.follow(e, s)
	}
	return nil
}

func (w *Walker) follow(e cfg.Edge, s *ProgramState) {
	if e.Label == cfg.LabelException {
		s = s.ClearStack()
	}
	w.enqueue(ProgramPoint{Block: e.To}, s.pushResume(e.Resume))
}

type outcome struct {
	value bool
	state *ProgramState
}

func (w *Walker) binaryBranch(b *cfg.Block, s *ProgramState) error {
	if s.StackSize() == 0 {
		if _, isForeach := b.Terminator.(*cfg.ForeachNext); !isForeach {
			return fmt.Errorf("%w: empty stack at branch B%d", ErrInvariant, b.ID)
		}
	}

	var outcomes []outcome
	try := func(value bool, st *ProgramState, ok bool) {
		if ok {
			outcomes = append(outcomes, outcome{value: value, state: st})
		}
	}

	switch t := b.Terminator.(type) {
	case *syntax.Binary:
		v := s.Peek(0)
		switch t.Op {
		case "??":
			// true: the left operand is the result.
			st, ok := s.TrySetConstraint(v, NotNull)
			try(true, st, ok)
			st, ok = s.TrySetConstraint(v, Null)
			try(false, popped(st, ok), ok)
		case "&&":
			w.shortCircuit(s, v, true, try)
		case "||":
			w.shortCircuit(s, v, false, try)
		default:
			w.condition(s, try)
		}

	case *syntax.Assign:
		v := s.Peek(0)
		st, ok := s.TrySetConstraint(v, NotNull)
		try(true, st, ok)
		st, ok = s.TrySetConstraint(v, Null)
		try(false, popped(st, ok), ok)

	case *syntax.ConditionalAccess:
		v := s.Peek(0)
		st, ok := s.TrySetConstraint(v, NotNull)
		try(true, st, ok)
		st, ok = s.TrySetConstraint(v, Null)
		try(false, st, ok)

	case *cfg.ShortCircuit:
		w.shortCircuit(s, s.Peek(0), t.Op == "&&", try)

	case *cfg.ForeachNext:
		coll, _ := s.ValueOf(t.Collection)
		if !s.HasConstraint(coll, Empty) {
			try(true, s, true)
		}
		try(false, s, true)

	default:
		w.condition(s, try)
	}

	for _, o := range outcomes {
		for _, obs := range w.branch {
			obs.Branch(&BranchContext{Block: b, Condition: b.Terminator, Outcome: o.value, State: o.state})
		}
		label := cfg.LabelFalse
		if o.value {
			label = cfg.LabelTrue
		}
		if e := b.SuccessorFor(label); e != nil {
			w.follow(*e, o.state)
		}
	}
	return nil
}

// condition consumes a boolean and splits on its value.
func (w *Walker) condition(s *ProgramState, try func(bool, *ProgramState, bool)) {
	s, v := s.Pop()
	st, ok := s.TrySetConstraint(v, True)
	try(true, st, ok)
	st, ok = s.TrySetConstraint(v, False)
	try(false, st, ok)
}

// shortCircuit handles && (and) and || (!and). The edge that skips the
// right operand keeps the left value as the result; the other edge
// discards it.
func (w *Walker) shortCircuit(s *ProgramState, v SymbolicValue, and bool, try func(bool, *ProgramState, bool)) {
	st, ok := s.TrySetConstraint(v, True)
	if and {
		try(true, popped(st, ok), ok)
	} else {
		try(true, st, ok)
	}
	st, ok = s.TrySetConstraint(v, False)
	if and {
		try(false, st, ok)
	} else {
		try(false, popped(st, ok), ok)
	}
}

func popped(s *ProgramState, ok bool) *ProgramState {
	if !ok {
		return nil
	}
	s, _ = s.Pop()
	return s
}
