package cfg

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// jumpTarget is an enclosing loop or switch that break/continue refer to.
// depth is the number of active finally regions when it was entered.
type jumpTarget struct {
	breakTo    *Block
	continueTo *Block
	depth      int
}

// handlerFrame describes where an exception raised in the current region
// goes: the catch entries in order, then the finally region if any.
type handlerFrame struct {
	catches  []*Block
	catchAll bool
	finally  *finallyRegion
}

type finallyRegion struct {
	entry *Block
	exit  *Block
}

type labelInfo struct {
	block *Block
	depth int
}

type pendingGoto struct {
	from      *Block
	stmt      *syntax.Goto
	finallies []*finallyRegion
	backward  bool
}

type switchContext struct {
	cases map[string]*Block
	def   *Block
	depth int
}

type builder struct {
	model syntax.SemanticModel

	blocks   []*Block
	incoming map[*Block]int
	entry    *Block
	exit     *Block
	cur      *Block

	jumps     []*jumpTarget
	handlers  []*handlerFrame
	finallies []*finallyRegion
	switches  []*switchContext
	labels    map[string]*labelInfo
	pending   []pendingGoto

	loopHeaders map[*Block]bool
	temps       int
}

// Build creates the control flow graph of a procedure body. body is either a
// *syntax.Block or an expression for expression-bodied members.
//
// Constructs the builder does not model yield an error wrapping
// ErrUnsupportedSyntax; the caller should skip the procedure. A graph that
// fails validation yields an *InvariantError.
func Build(body syntax.Node, model syntax.SemanticModel) (*Graph, error) {
	if body == nil {
		return nil, unsupported(nil, "missing body")
	}

	b := &builder{
		model:       model,
		incoming:    make(map[*Block]int),
		labels:      make(map[string]*labelInfo),
		loopHeaders: make(map[*Block]bool),
	}
	b.entry = b.newBlock(BlockEntry)
	b.exit = b.newBlock(BlockExit)
	b.cur = b.entry
	b.startBlock()

	switch body := body.(type) {
	case syntax.Stmt:
		if err := b.stmt(body); err != nil {
			return nil, err
		}
	case syntax.Expr:
		if err := b.expr(body); err != nil {
			return nil, err
		}
	default:
		return nil, unsupported(body, fmt.Sprintf("body %T", body))
	}
	if b.cur != nil {
		b.addEdge(b.cur, b.exit, LabelPlain)
	}

	if err := b.resolveGotos(); err != nil {
		return nil, err
	}

	g := b.finish(body)
	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// TryBuild is Build for callers that only care whether a graph exists.
func TryBuild(body syntax.Node, model syntax.SemanticModel) (*Graph, bool) {
	g, err := Build(body, model)
	return g, err == nil
}

// ---- block plumbing ----

func (b *builder) newBlock(kind BlockKind) *Block {
	blk := &Block{ID: -1, Kind: kind}
	b.blocks = append(b.blocks, blk)
	return blk
}

// current returns the block receiving operations. Code following a jump
// goes into a fresh block with no predecessors, removed when the graph is
// finished.
func (b *builder) current() *Block {
	if b.cur == nil {
		b.cur = b.newBlock(BlockSimple)
	}
	return b.cur
}

// startBlock begins a new block that the current one falls through to.
func (b *builder) startBlock() *Block {
	blk := b.newBlock(BlockSimple)
	if b.cur != nil {
		b.addEdge(b.cur, blk, LabelPlain)
	}
	b.cur = blk
	return blk
}

// end closes the current block with a terminator.
func (b *builder) end(kind BlockKind, term syntax.Node) *Block {
	blk := b.current()
	blk.Kind = kind
	blk.Terminator = term
	b.cur = nil
	return blk
}

// close detaches the current block without changing its kind.
func (b *builder) close() *Block {
	blk := b.current()
	b.cur = nil
	return blk
}

// continueAt makes blk current if anything flows into it.
func (b *builder) continueAt(blk *Block) {
	if b.incoming[blk] > 0 {
		b.cur = blk
	} else {
		b.cur = nil
	}
}

func (b *builder) addEdge(from, to *Block, label EdgeLabel) {
	from.Successors = append(from.Successors, Edge{To: to, Label: label})
	b.incoming[to]++
}

func (b *builder) addBackEdge(from, to *Block, label EdgeLabel) {
	from.Successors = append(from.Successors, Edge{To: to, Label: label, Back: true})
	b.incoming[to]++
	b.loopHeaders[to] = true
}

// jump connects from to target, routing through every finally region the
// transfer leaves. crossed lists those regions innermost first.
func (b *builder) jump(from, target *Block, label EdgeLabel, crossed []*finallyRegion) {
	if len(crossed) == 0 {
		b.addEdge(from, target, label)
		return
	}
	resume := make([]Resume, 0, len(crossed))
	for i := len(crossed) - 1; i >= 0; i-- {
		next := target
		if i+1 < len(crossed) {
			next = crossed[i+1].entry
		}
		resume = append(resume, Resume{Exit: crossed[i].exit, Target: next})
		if !crossed[i].exit.hasSuccessor(next, LabelPlain) {
			b.addEdge(crossed[i].exit, next, LabelPlain)
		}
	}
	from.Successors = append(from.Successors, Edge{To: crossed[0].entry, Label: label, Resume: resume})
	b.incoming[crossed[0].entry]++
}

// crossedSince returns the finally regions entered after depth, innermost
// first.
func (b *builder) crossedSince(depth int) []*finallyRegion {
	var out []*finallyRegion
	for i := len(b.finallies) - 1; i >= depth; i-- {
		out = append(out, b.finallies[i])
	}
	return out
}

// addExceptionEdges links from to every handler an exception raised there
// can reach, ending at the procedure exit when nothing catches everything.
func (b *builder) addExceptionEdges(from *Block) {
	var crossed []*finallyRegion
	for i := len(b.handlers) - 1; i >= 0; i-- {
		h := b.handlers[i]
		for _, c := range h.catches {
			b.jump(from, c, LabelException, crossed)
		}
		if h.catchAll {
			return
		}
		if h.finally != nil {
			crossed = append(crossed, h.finally)
		}
	}
	b.jump(from, b.exit, LabelException, crossed)
}

func canThrow(n syntax.Node) bool {
	if _, ok := n.(*ForeachStart); ok {
		return true
	}
	return syntax.CanThrow(n)
}

// emit appends an operation to the current block. Inside a protected region
// a throwing operation ends its block so the exception edges leave from
// exactly that point.
func (b *builder) emit(n syntax.Node) {
	blk := b.current()
	blk.Instructions = append(blk.Instructions, n)
	if len(b.handlers) > 0 && canThrow(n) {
		next := b.newBlock(BlockSimple)
		b.addEdge(blk, next, LabelPlain)
		b.addExceptionEdges(blk)
		b.cur = next
	}
}

func (b *builder) newTemp(n syntax.Node) *syntax.Symbol {
	b.temps++
	return &syntax.Symbol{
		Name: fmt.Sprintf("%%t%d", b.temps),
		Kind: syntax.SymbolTemp,
		Decl: n.Pos(),
	}
}

// ---- statements ----

func (b *builder) stmts(list []syntax.Stmt) error {
	for _, s := range list {
		if err := b.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) stmt(s syntax.Stmt) error {
	switch s := s.(type) {
	case *syntax.Block:
		return b.stmts(s.Stmts)
	case *syntax.Empty:
		return nil
	case *syntax.ExprStmt:
		if err := b.expr(s.X); err != nil {
			return err
		}
		b.emit(s)
		return nil
	case *syntax.LocalDecl:
		return b.localDecl(s)
	case *syntax.If:
		return b.ifStmt(s)
	case *syntax.While:
		return b.whileStmt(s)
	case *syntax.Do:
		return b.doStmt(s)
	case *syntax.For:
		return b.forStmt(s)
	case *syntax.Foreach:
		return b.foreachStmt(s)
	case *syntax.Return:
		if s.X != nil {
			if err := b.expr(s.X); err != nil {
				return err
			}
		}
		blk := b.end(BlockJump, s)
		b.jump(blk, b.exit, LabelPlain, b.crossedSince(0))
		return nil
	case *syntax.Throw:
		if s.X != nil {
			if err := b.expr(s.X); err != nil {
				return err
			}
		}
		blk := b.end(BlockJump, s)
		b.addExceptionEdges(blk)
		return nil
	case *syntax.Break:
		if len(b.jumps) == 0 {
			return unsupported(s, "break outside loop or switch")
		}
		t := b.jumps[len(b.jumps)-1]
		blk := b.end(BlockJump, s)
		b.jump(blk, t.breakTo, LabelPlain, b.crossedSince(t.depth))
		return nil
	case *syntax.Continue:
		for i := len(b.jumps) - 1; i >= 0; i-- {
			t := b.jumps[i]
			if t.continueTo == nil {
				continue
			}
			blk := b.end(BlockJump, s)
			b.jump(blk, t.continueTo, LabelPlain, b.crossedSince(t.depth))
			return nil
		}
		return unsupported(s, "continue outside loop")
	case *syntax.Goto:
		return b.gotoStmt(s)
	case *syntax.Labeled:
		if _, dup := b.labels[s.Label]; dup {
			return unsupported(s, "duplicate label "+s.Label)
		}
		blk := b.startBlock()
		b.labels[s.Label] = &labelInfo{block: blk, depth: len(b.finallies)}
		return b.stmt(s.Stmt)
	case *syntax.Try:
		return b.tryStmt(s)
	case *syntax.Using:
		return b.usingStmt(s)
	case *syntax.Lock:
		return b.lockStmt(s)
	case *syntax.Switch:
		return b.switchStmt(s)
	case *syntax.UnsupportedStmt:
		return unsupported(s, s.Kind)
	case nil:
		return nil
	default:
		return unsupported(s, fmt.Sprintf("statement %T", s))
	}
}

func (b *builder) localDecl(s *syntax.LocalDecl) error {
	for _, v := range s.Vars {
		if v.Init != nil {
			if err := b.expr(v.Init); err != nil {
				return err
			}
		}
		b.emit(v)
	}
	return nil
}

func (b *builder) ifStmt(s *syntax.If) error {
	if err := b.expr(s.Cond); err != nil {
		return err
	}
	br := b.end(BlockBinaryBranch, s)
	thenBlk := b.newBlock(BlockSimple)
	join := b.newBlock(BlockSimple)

	b.addEdge(br, thenBlk, LabelTrue)
	b.cur = thenBlk
	if err := b.stmt(s.Then); err != nil {
		return err
	}
	if b.cur != nil {
		b.addEdge(b.cur, join, LabelPlain)
	}

	if s.Else == nil {
		b.addEdge(br, join, LabelFalse)
	} else {
		elseBlk := b.newBlock(BlockSimple)
		b.addEdge(br, elseBlk, LabelFalse)
		b.cur = elseBlk
		if err := b.stmt(s.Else); err != nil {
			return err
		}
		if b.cur != nil {
			b.addEdge(b.cur, join, LabelPlain)
		}
	}
	b.continueAt(join)
	return nil
}

func (b *builder) loopBody(body syntax.Stmt, breakTo, continueTo *Block) error {
	b.jumps = append(b.jumps, &jumpTarget{breakTo: breakTo, continueTo: continueTo, depth: len(b.finallies)})
	err := b.stmt(body)
	b.jumps = b.jumps[:len(b.jumps)-1]
	return err
}

func (b *builder) whileStmt(s *syntax.While) error {
	header := b.startBlock()
	if err := b.expr(s.Cond); err != nil {
		return err
	}
	br := b.end(BlockBinaryBranch, s)
	body := b.newBlock(BlockSimple)
	after := b.newBlock(BlockSimple)
	b.addEdge(br, body, LabelTrue)
	b.addEdge(br, after, LabelFalse)

	b.cur = body
	if err := b.loopBody(s.Body, after, header); err != nil {
		return err
	}
	if b.cur != nil {
		b.addBackEdge(b.cur, header, LabelPlain)
	}
	b.continueAt(after)
	return nil
}

func (b *builder) doStmt(s *syntax.Do) error {
	body := b.startBlock()
	cond := b.newBlock(BlockSimple)
	after := b.newBlock(BlockSimple)

	if err := b.loopBody(s.Body, after, cond); err != nil {
		return err
	}
	if b.cur != nil {
		b.addEdge(b.cur, cond, LabelPlain)
	}

	b.cur = cond
	if err := b.expr(s.Cond); err != nil {
		return err
	}
	br := b.end(BlockBinaryBranch, s)
	b.addBackEdge(br, body, LabelTrue)
	b.addEdge(br, after, LabelFalse)
	b.continueAt(after)
	return nil
}

func (b *builder) forStmt(s *syntax.For) error {
	if len(s.Init) > 0 {
		init := b.startBlock()
		init.Kind = BlockForInitializer
		if err := b.stmts(s.Init); err != nil {
			return err
		}
	}

	header := b.startBlock()
	body := b.newBlock(BlockSimple)
	incr := b.newBlock(BlockSimple)
	after := b.newBlock(BlockSimple)
	if s.Cond != nil {
		if err := b.expr(s.Cond); err != nil {
			return err
		}
		br := b.end(BlockBinaryBranch, s)
		b.addEdge(br, body, LabelTrue)
		b.addEdge(br, after, LabelFalse)
	} else {
		b.addEdge(b.current(), body, LabelPlain)
	}

	b.cur = body
	if err := b.loopBody(s.Body, after, incr); err != nil {
		return err
	}
	if b.cur != nil {
		b.addEdge(b.cur, incr, LabelPlain)
	}

	b.cur = incr
	if err := b.stmts(s.Post); err != nil {
		return err
	}
	if b.cur != nil {
		b.addBackEdge(b.cur, header, LabelPlain)
	}
	b.continueAt(after)
	return nil
}

func (b *builder) foreachStmt(s *syntax.Foreach) error {
	producer := b.startBlock()
	producer.Kind = BlockForeachProducer
	if err := b.expr(s.Collection); err != nil {
		return err
	}
	coll := b.newTemp(s.Collection)
	b.emit(&ForeachStart{Span: s.Collection.Pos(), Stmt: s, Collection: coll})

	b.startBlock()
	header := b.end(BlockBinaryBranch, &ForeachNext{Span: s.Span, Stmt: s, Collection: coll})
	body := b.newBlock(BlockSimple)
	after := b.newBlock(BlockSimple)
	b.addEdge(header, body, LabelTrue)
	b.addEdge(header, after, LabelFalse)

	b.cur = body
	if s.Var != nil {
		b.emit(s.Var)
	}
	if err := b.loopBody(s.Body, after, header); err != nil {
		return err
	}
	if b.cur != nil {
		b.addBackEdge(b.cur, header, LabelPlain)
	}
	b.continueAt(after)
	return nil
}

func (b *builder) gotoStmt(s *syntax.Goto) error {
	if s.Kind != syntax.GotoLabel {
		if len(b.switches) == 0 {
			return unsupported(s, "goto case outside switch")
		}
		sw := b.switches[len(b.switches)-1]
		target := sw.def
		if s.Kind == syntax.GotoCase {
			target = sw.cases[b.caseKey(s.Case)]
		}
		if target == nil {
			return unsupported(s, "unresolved "+syntax.Format(s))
		}
		blk := b.end(BlockJump, s)
		b.jump(blk, target, LabelPlain, b.crossedSince(sw.depth))
		return nil
	}

	_, backward := b.labels[s.Label]
	blk := b.end(BlockJump, s)
	b.pending = append(b.pending, pendingGoto{
		from:      blk,
		stmt:      s,
		finallies: append([]*finallyRegion(nil), b.finallies...),
		backward:  backward,
	})
	return nil
}

func (b *builder) resolveGotos() error {
	for _, p := range b.pending {
		li, ok := b.labels[p.stmt.Label]
		if !ok {
			return unsupported(p.stmt, "unresolved goto target "+p.stmt.Label)
		}
		var crossed []*finallyRegion
		for i := len(p.finallies) - 1; i >= li.depth && i >= 0; i-- {
			crossed = append(crossed, p.finallies[i])
		}
		if p.backward && len(crossed) == 0 {
			b.addBackEdge(p.from, li.block, LabelPlain)
			continue
		}
		b.jump(p.from, li.block, LabelPlain, crossed)
	}
	return nil
}

// caseKey identifies a case label, by constant value when the model knows it.
func (b *builder) caseKey(e syntax.Expr) string {
	if b.model != nil {
		if v, ok := b.model.ConstantValueOf(e); ok {
			return fmt.Sprint(v)
		}
	}
	if lit, ok := syntax.RemoveParentheses(e).(*syntax.Literal); ok {
		return lit.Value
	}
	return syntax.Format(syntax.RemoveParentheses(e))
}

func (b *builder) switchStmt(s *syntax.Switch) error {
	if err := b.expr(s.X); err != nil {
		return err
	}
	sw := b.end(BlockBranch, s)
	after := b.newBlock(BlockSimple)

	ctx := &switchContext{cases: make(map[string]*Block), depth: len(b.finallies)}
	sections := make([]*Block, len(s.Sections))
	for i, sec := range s.Sections {
		sections[i] = b.newBlock(BlockSimple)
		for _, c := range sec.Cases {
			key := b.caseKey(c)
			if _, seen := ctx.cases[key]; !seen {
				ctx.cases[key] = sections[i]
			}
		}
		if sec.Default && ctx.def == nil {
			ctx.def = sections[i]
		}
		b.addEdge(sw, sections[i], LabelPlain)
	}
	if ctx.def == nil {
		b.addEdge(sw, after, LabelPlain)
	}

	b.switches = append(b.switches, ctx)
	b.jumps = append(b.jumps, &jumpTarget{breakTo: after, depth: len(b.finallies)})
	for i, sec := range s.Sections {
		b.cur = sections[i]
		if err := b.stmts(sec.Body); err != nil {
			return err
		}
		if b.cur != nil {
			b.addEdge(b.cur, after, LabelPlain)
		}
	}
	b.jumps = b.jumps[:len(b.jumps)-1]
	b.switches = b.switches[:len(b.switches)-1]

	b.continueAt(after)
	return nil
}

func (b *builder) tryStmt(s *syntax.Try) error {
	after := b.newBlock(BlockSimple)
	var fin *finallyRegion
	if s.Finally != nil {
		fin = &finallyRegion{entry: b.newBlock(BlockSimple), exit: b.newBlock(BlockFinallyExit)}
	}
	var leaving []*finallyRegion
	if fin != nil {
		leaving = []*finallyRegion{fin}
	}

	frame := &handlerFrame{finally: fin}
	entries := make([]*Block, len(s.Catches))
	for i, c := range s.Catches {
		entries[i] = b.newBlock(BlockSimple)
		if !frame.catchAll {
			frame.catches = append(frame.catches, entries[i])
			frame.catchAll = syntax.IsCatchingAllExceptions(c)
		}
	}

	b.startBlock()
	b.handlers = append(b.handlers, frame)
	if fin != nil {
		b.finallies = append(b.finallies, fin)
	}
	if err := b.stmt(s.Body); err != nil {
		return err
	}
	if b.cur != nil {
		b.jump(b.close(), after, LabelPlain, leaving)
	}
	b.handlers = b.handlers[:len(b.handlers)-1]

	if fin != nil {
		b.handlers = append(b.handlers, &handlerFrame{finally: fin})
	}
	for i, c := range s.Catches {
		b.cur = entries[i]
		b.emit(c)
		if c.Filter != nil {
			if err := b.expr(c.Filter); err != nil {
				return err
			}
			br := b.end(BlockBinaryBranch, c)
			body := b.newBlock(BlockSimple)
			rethrow := b.newBlock(BlockJump)
			rethrow.Terminator = c
			b.addEdge(br, body, LabelTrue)
			b.addEdge(br, rethrow, LabelFalse)
			b.addExceptionEdges(rethrow)
			b.cur = body
		}
		if err := b.stmt(c.Body); err != nil {
			return err
		}
		if b.cur != nil {
			b.jump(b.close(), after, LabelPlain, leaving)
		}
	}
	if fin != nil {
		b.handlers = b.handlers[:len(b.handlers)-1]
		b.finallies = b.finallies[:len(b.finallies)-1]

		b.cur = fin.entry
		if err := b.stmt(s.Finally); err != nil {
			return err
		}
		if b.cur != nil {
			b.addEdge(b.cur, fin.exit, LabelPlain)
		}
	}

	b.continueAt(after)
	return nil
}

func (b *builder) usingStmt(s *syntax.Using) error {
	switch {
	case s.Decl != nil:
		if err := b.localDecl(s.Decl); err != nil {
			return err
		}
	case s.X != nil:
		if err := b.expr(s.X); err != nil {
			return err
		}
		b.emit(s)
	}

	fin := &finallyRegion{entry: b.newBlock(BlockUsingEnd), exit: b.newBlock(BlockFinallyExit)}
	fin.entry.Terminator = s
	b.addEdge(fin.entry, fin.exit, LabelPlain)
	after := b.newBlock(BlockSimple)

	b.startBlock()
	b.handlers = append(b.handlers, &handlerFrame{finally: fin})
	b.finallies = append(b.finallies, fin)
	if err := b.stmt(s.Body); err != nil {
		return err
	}
	if b.cur != nil {
		b.jump(b.close(), after, LabelPlain, []*finallyRegion{fin})
	}
	b.handlers = b.handlers[:len(b.handlers)-1]
	b.finallies = b.finallies[:len(b.finallies)-1]

	b.continueAt(after)
	return nil
}

func (b *builder) lockStmt(s *syntax.Lock) error {
	if err := b.expr(s.X); err != nil {
		return err
	}
	blk := b.current()
	b.emit(s)
	blk.Kind = BlockLock
	if b.cur == blk {
		b.startBlock()
	}
	return b.stmt(s.Body)
}

// ---- expressions ----

func (b *builder) exprs(list []syntax.Expr) error {
	for _, e := range list {
		if err := b.expr(e); err != nil {
			return err
		}
	}
	return nil
}

// expr emits the operations of e in evaluation order. Each expression
// leaves exactly one value on the stack.
func (b *builder) expr(e syntax.Expr) error {
	switch e := e.(type) {
	case *syntax.Paren:
		return b.expr(e.X)
	case *syntax.Identifier, *syntax.Literal, *syntax.This, *syntax.Lambda,
		*syntax.MemberBinding, *syntax.RefArg, *syntax.UnsupportedExpr:
		b.emit(e)
	case *syntax.MemberAccess:
		if err := b.expr(e.X); err != nil {
			return err
		}
		b.emit(e)
	case *syntax.ElementAccess:
		if err := b.expr(e.X); err != nil {
			return err
		}
		if err := b.exprs(e.Index); err != nil {
			return err
		}
		b.emit(e)
	case *syntax.ElementBinding:
		if err := b.exprs(e.Index); err != nil {
			return err
		}
		b.emit(e)
	case *syntax.Invocation:
		return b.invocation(e)
	case *syntax.ObjectCreation:
		if err := b.exprs(e.Args); err != nil {
			return err
		}
		b.emit(e)
	case *syntax.Binary:
		switch e.Op {
		case "&&", "||", "??":
			return b.shortCircuit(e)
		}
		if err := b.expr(e.X); err != nil {
			return err
		}
		if err := b.expr(e.Y); err != nil {
			return err
		}
		b.emit(e)
	case *syntax.Unary:
		if err := b.expr(e.X); err != nil {
			return err
		}
		b.emit(e)
	case *syntax.Postfix:
		if err := b.expr(e.X); err != nil {
			return err
		}
		b.emit(e)
	case *syntax.Assign:
		return b.assign(e)
	case *syntax.Conditional:
		return b.conditional(e)
	case *syntax.ConditionalAccess:
		return b.conditionalAccess(e)
	case *syntax.IsPattern:
		if err := b.expr(e.X); err != nil {
			return err
		}
		temp := b.newTemp(e.X)
		b.emit(&TempStore{Span: e.X.Pos(), Temp: temp})
		return b.pattern(e.Pattern, temp)
	case *syntax.Cast:
		if err := b.expr(e.X); err != nil {
			return err
		}
		b.emit(e)
	case *syntax.As:
		if err := b.expr(e.X); err != nil {
			return err
		}
		b.emit(e)
	case *syntax.Opaque:
		if err := b.exprs(e.Operands); err != nil {
			return err
		}
		b.emit(e)
	case nil:
		return unsupported(nil, "missing expression")
	default:
		return unsupported(e, fmt.Sprintf("expression %T", e))
	}
	return nil
}

func (b *builder) invocation(e *syntax.Invocation) error {
	if syntax.IsNameof(e) {
		b.emit(e)
		return nil
	}
	switch f := e.Fun.(type) {
	case *syntax.MemberAccess:
		if err := b.expr(f.X); err != nil {
			return err
		}
	case *syntax.Identifier, *syntax.MemberBinding:
		// method name, or receiver already on the stack
	default:
		if err := b.expr(f); err != nil {
			return err
		}
	}
	if err := b.exprs(e.Args); err != nil {
		return err
	}
	b.emit(e)
	return nil
}

func (b *builder) assign(e *syntax.Assign) error {
	if e.Op == "??=" {
		if err := b.expr(e.Left); err != nil {
			return err
		}
		br := b.end(BlockBinaryBranch, e)
		rhs := b.newBlock(BlockSimple)
		join := b.newBlock(BlockSimple)
		b.addEdge(br, join, LabelTrue)
		b.addEdge(br, rhs, LabelFalse)
		b.cur = rhs
		if err := b.expr(e.Right); err != nil {
			return err
		}
		b.emit(e)
		b.addEdge(b.current(), join, LabelPlain)
		b.cur = join
		return nil
	}
	if AssignEvaluatesLeft(e) {
		if err := b.expr(e.Left); err != nil {
			return err
		}
	}
	if err := b.expr(e.Right); err != nil {
		return err
	}
	b.emit(e)
	return nil
}

// shortCircuit desugars &&, || and ??. The true edge of `??` means the left
// operand is not null and becomes the result.
func (b *builder) shortCircuit(e *syntax.Binary) error {
	if err := b.expr(e.X); err != nil {
		return err
	}
	br := b.end(BlockBinaryBranch, e)
	rhs := b.newBlock(BlockSimple)
	join := b.newBlock(BlockSimple)
	if e.Op == "&&" {
		b.addEdge(br, rhs, LabelTrue)
		b.addEdge(br, join, LabelFalse)
	} else {
		b.addEdge(br, join, LabelTrue)
		b.addEdge(br, rhs, LabelFalse)
	}
	b.cur = rhs
	if err := b.expr(e.Y); err != nil {
		return err
	}
	if b.cur != nil {
		b.addEdge(b.cur, join, LabelPlain)
	}
	b.cur = join
	return nil
}

func (b *builder) conditional(e *syntax.Conditional) error {
	if err := b.expr(e.Cond); err != nil {
		return err
	}
	br := b.end(BlockBinaryBranch, e)
	thenBlk := b.newBlock(BlockSimple)
	elseBlk := b.newBlock(BlockSimple)
	join := b.newBlock(BlockSimple)
	b.addEdge(br, thenBlk, LabelTrue)
	b.addEdge(br, elseBlk, LabelFalse)

	b.cur = thenBlk
	if err := b.expr(e.Then); err != nil {
		return err
	}
	if b.cur != nil {
		b.addEdge(b.cur, join, LabelPlain)
	}
	b.cur = elseBlk
	if err := b.expr(e.Else); err != nil {
		return err
	}
	if b.cur != nil {
		b.addEdge(b.cur, join, LabelPlain)
	}
	b.cur = join
	return nil
}

// conditionalAccess desugars `x?.rest`: the true edge (x not null) keeps x
// as the receiver of rest, the false edge keeps x as the null result.
func (b *builder) conditionalAccess(e *syntax.ConditionalAccess) error {
	if err := b.expr(e.X); err != nil {
		return err
	}
	br := b.end(BlockBinaryBranch, e)
	notNull := b.newBlock(BlockSimple)
	join := b.newBlock(BlockSimple)
	b.addEdge(br, notNull, LabelTrue)
	b.addEdge(br, join, LabelFalse)
	b.cur = notNull
	if err := b.expr(e.WhenNotNull); err != nil {
		return err
	}
	if b.cur != nil {
		b.addEdge(b.cur, join, LabelPlain)
	}
	b.cur = join
	return nil
}

// ---- patterns ----

func isLeafPattern(p syntax.Pattern) bool {
	switch p := p.(type) {
	case *syntax.ConstantPattern, *syntax.DeclarationPattern, *syntax.VarPattern,
		*syntax.DiscardPattern, *syntax.RelationalPattern:
		return true
	case *syntax.NotPattern:
		return isLeafPattern(p.Pattern)
	case *syntax.RecursivePattern:
		return len(p.Props) == 0
	}
	return false
}

// pattern emits code leaving the outcome of matching the value held in temp
// against p. Conjunctions and disjunctions become short-circuit branches.
func (b *builder) pattern(p syntax.Pattern, temp *syntax.Symbol) error {
	if isLeafPattern(p) {
		b.emit(&TempLoad{Span: p.Pos(), Temp: temp})
		b.emit(&PatternTest{Span: p.Pos(), Pattern: p})
		return nil
	}
	switch p := p.(type) {
	case *syntax.NotPattern:
		if err := b.pattern(p.Pattern, temp); err != nil {
			return err
		}
		b.emit(&Negate{Span: p.Span})
		return nil
	case *syntax.BinaryPattern:
		op := "||"
		if p.Op == "and" {
			op = "&&"
		}
		return b.junction(op, p, []func() error{
			func() error { return b.pattern(p.Left, temp) },
			func() error { return b.pattern(p.Right, temp) },
		})
	case *syntax.RecursivePattern:
		steps := []func() error{func() error {
			b.emit(&TempLoad{Span: p.Span, Temp: temp})
			b.emit(&PatternTest{Span: p.Span, Pattern: p})
			return nil
		}}
		for _, sp := range p.Props {
			sp := sp
			steps = append(steps, func() error {
				b.emit(&TempLoad{Span: sp.Span, Temp: temp})
				b.emit(&PropertyRead{Span: sp.Span, Member: sp.Member})
				inner := b.newTemp(sp)
				b.emit(&TempStore{Span: sp.Span, Temp: inner})
				return b.pattern(sp.Pattern, inner)
			})
		}
		return b.junction("&&", p, steps)
	}
	return unsupported(p, fmt.Sprintf("pattern %T", p))
}

// junction chains steps with short-circuit branches; the value left by the
// last evaluated step is the result.
func (b *builder) junction(op string, origin syntax.Pattern, steps []func() error) error {
	if err := steps[0](); err != nil {
		return err
	}
	for _, step := range steps[1:] {
		br := b.end(BlockBinaryBranch, &ShortCircuit{Span: origin.Pos(), Op: op, Origin: origin})
		next := b.newBlock(BlockSimple)
		join := b.newBlock(BlockSimple)
		if op == "&&" {
			b.addEdge(br, next, LabelTrue)
			b.addEdge(br, join, LabelFalse)
		} else {
			b.addEdge(br, join, LabelTrue)
			b.addEdge(br, next, LabelFalse)
		}
		b.cur = next
		if err := step(); err != nil {
			return err
		}
		b.addEdge(b.current(), join, LabelPlain)
		b.cur = join
	}
	return nil
}

// ---- finishing ----

// finish drops blocks unreachable from the entry, numbers the rest in
// creation order with the exit last, and fills in predecessors.
func (b *builder) finish(source syntax.Node) *Graph {
	reachable := map[*Block]bool{b.entry: true}
	queue := []*Block{b.entry}
	for len(queue) > 0 {
		blk := queue[0]
		queue = queue[1:]
		for _, e := range blk.Successors {
			if !reachable[e.To] {
				reachable[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}

	g := &Graph{Entry: b.entry, Exit: b.exit, Source: source, loopHeaders: make(map[*Block]bool)}
	for _, blk := range b.blocks {
		if blk != b.exit && reachable[blk] {
			blk.ID = len(g.Blocks)
			g.Blocks = append(g.Blocks, blk)
		}
	}
	b.exit.ID = len(g.Blocks)
	g.Blocks = append(g.Blocks, b.exit)

	for _, blk := range g.Blocks {
		blk.Predecessors = nil
	}
	for _, blk := range g.Blocks {
		for _, e := range blk.Successors {
			if !containsBlock(e.To.Predecessors, blk) {
				e.To.Predecessors = append(e.To.Predecessors, blk)
			}
		}
	}
	for _, blk := range g.Blocks {
		sort.Slice(blk.Predecessors, func(i, j int) bool {
			return blk.Predecessors[i].ID < blk.Predecessors[j].ID
		})
		if b.loopHeaders[blk] {
			g.loopHeaders[blk] = true
		}
	}
	return g
}

func containsBlock(list []*Block, blk *Block) bool {
	for _, x := range list {
		if x == blk {
			return true
		}
	}
	return false
}
