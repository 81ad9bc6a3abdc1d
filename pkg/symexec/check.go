package symexec

import (
	"fmt"

	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// ProgramPoint is a position in the graph. Offset indexes the block's
// instructions; Offset == len(Instructions) is the block's terminator.
type ProgramPoint struct {
	Block  *cfg.Block
	Offset int
}

// IsTerminator reports whether the point is past the block's last
// instruction.
func (p ProgramPoint) IsTerminator() bool { return p.Offset >= len(p.Block.Instructions) }

// Instruction returns the operation at the point, or nil at the terminator.
func (p ProgramPoint) Instruction() syntax.Node {
	if p.IsTerminator() {
		return nil
	}
	return p.Block.Instructions[p.Offset]
}

func (p ProgramPoint) next() ProgramPoint { return ProgramPoint{Block: p.Block, Offset: p.Offset + 1} }

func (p ProgramPoint) String() string { return fmt.Sprintf("B%d.%d", p.Block.ID, p.Offset) }

// Check is any value implementing one or more of the observer interfaces
// below. The walker discovers the capabilities of each check once, when it
// is created, and invokes them in registration order.
type Check any

// InstructionContext describes the instruction about to be (or just)
// processed. State is the state before the instruction for pre-observers
// and after it for post-observers.
type InstructionContext struct {
	Point       ProgramPoint
	Instruction syntax.Node
	State       *ProgramState
	Model       syntax.SemanticModel
}

// PreInstructionObserver sees every instruction before its effect is
// applied. Returning false drops the path.
type PreInstructionObserver interface {
	PreInstruction(ctx *InstructionContext) (*ProgramState, bool)
}

// PostInstructionObserver sees every instruction after its effect.
// Returning false drops the path.
type PostInstructionObserver interface {
	PostInstruction(ctx *InstructionContext) (*ProgramState, bool)
}

// BranchContext describes one feasible outcome of a binary branch.
type BranchContext struct {
	Block     *cfg.Block
	Condition syntax.Node
	Outcome   bool
	State     *ProgramState
}

// BranchObserver is told about every feasible outcome of every binary
// branch evaluated on any path.
type BranchObserver interface {
	Branch(ctx *BranchContext)
}

// ExplorationObserver is told once that the walk has ended, however it
// ended.
type ExplorationObserver interface {
	ExplorationEnded(r Result)
}

// DereferencedValue returns the value an instruction dereferences, reading
// the state before the instruction runs: the receiver of a member or element
// access, the receiver of an instance call, the collection of a foreach and
// the operand of a lock. ok is false for instructions that dereference
// nothing.
func DereferencedValue(n syntax.Node, s *ProgramState, model syntax.SemanticModel) (v SymbolicValue, ok bool) {
	if model == nil {
		model = syntax.NewMapModel()
	}
	switch n := n.(type) {
	case *syntax.MemberAccess:
		// Members of a nullable value type are read from the wrapper.
		if syntax.KindOf(model.TypeOf(n.X)) == syntax.TypeNullableValue {
			return NoValue, false
		}
		return s.Peek(0), true
	case *syntax.ElementAccess:
		return s.Peek(len(n.Index)), true
	case *syntax.Invocation:
		ma, isMember := n.Fun.(*syntax.MemberAccess)
		if !isMember || model.IsExtensionMethod(n) || syntax.KindOf(model.TypeOf(ma.X)) == syntax.TypeNullableValue {
			return NoValue, false
		}
		return s.Peek(len(n.Args)), true
	case *cfg.ForeachStart:
		return s.Peek(0), true
	case *syntax.Lock:
		return s.Peek(0), true
	}
	return NoValue, false
}
