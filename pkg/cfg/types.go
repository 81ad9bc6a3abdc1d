// Package cfg builds per-procedure control flow graphs from syntax trees.
// Blocks hold their operations in evaluation order, so a walker can replay
// them on an evaluation stack; branch conditions are never hidden inside
// short-circuit operators or patterns but show up as labeled edges.
package cfg

import "github.com/l3aro/go-sharp-flow/pkg/syntax"

// BlockKind represents the kind of a CFG block.
type BlockKind string

const (
	BlockEntry           BlockKind = "entry"            // Procedure entry point
	BlockExit            BlockKind = "exit"             // Procedure exit point
	BlockSimple          BlockKind = "simple"           // Straight-line operations
	BlockBranch          BlockKind = "branch"           // Multi-way branch (switch)
	BlockBinaryBranch    BlockKind = "binary_branch"    // Two-way branch with true/false edges
	BlockJump            BlockKind = "jump"             // Ends in return/throw/break/continue/goto
	BlockLock            BlockKind = "lock"             // Ends by acquiring a lock
	BlockUsingEnd        BlockKind = "using_end"        // Disposal at the end of a using
	BlockForeachProducer BlockKind = "foreach_producer" // Evaluates a foreach collection
	BlockForInitializer  BlockKind = "for_initializer"  // Runs for-loop initializers
	BlockFinallyExit     BlockKind = "finally_exit"     // Leaves a finally body towards its resume target
)

// EdgeLabel labels a control edge.
type EdgeLabel string

const (
	LabelPlain     EdgeLabel = ""
	LabelTrue      EdgeLabel = "true"
	LabelFalse     EdgeLabel = "false"
	LabelException EdgeLabel = "exception"
)

// Resume records where control continues once a finally body completes.
// Exit is the finally-exit block that consumes the entry.
type Resume struct {
	Exit   *Block
	Target *Block
}

// Edge is a directed control edge. Resume entries are pushed, in order, by
// a walker crossing the edge.
type Edge struct {
	To     *Block
	Label  EdgeLabel
	Back   bool
	Resume []Resume
}

// Block is a basic block.
type Block struct {
	ID           int
	Kind         BlockKind
	Instructions []syntax.Node
	// Terminator is the node that decides how control leaves the block:
	// the branching construct for branch blocks, the jump statement for
	// jump blocks, nil otherwise.
	Terminator   syntax.Node
	Successors   []Edge
	Predecessors []*Block
}

// SuccessorFor returns the first successor edge with the given label.
func (b *Block) SuccessorFor(label EdgeLabel) *Edge {
	for i := range b.Successors {
		if b.Successors[i].Label == label {
			return &b.Successors[i]
		}
	}
	return nil
}

// TrueSuccessor returns the true edge of a binary branch.
func (b *Block) TrueSuccessor() *Edge { return b.SuccessorFor(LabelTrue) }

// FalseSuccessor returns the false edge of a binary branch.
func (b *Block) FalseSuccessor() *Edge { return b.SuccessorFor(LabelFalse) }

func (b *Block) hasSuccessor(to *Block, label EdgeLabel) bool {
	for _, e := range b.Successors {
		if e.To == to && e.Label == label && len(e.Resume) == 0 {
			return true
		}
	}
	return false
}

// Graph is an immutable control flow graph of one procedure body.
type Graph struct {
	Blocks []*Block
	Entry  *Block
	Exit   *Block
	Source syntax.Node

	loopHeaders map[*Block]bool
}

// IsLoopHeader reports whether b is the target of a loop back-edge.
func (g *Graph) IsLoopHeader(b *Block) bool { return g.loopHeaders[b] }

// Instructions returns the total number of operations across all blocks.
func (g *Graph) Instructions() int {
	n := 0
	for _, b := range g.Blocks {
		n += len(b.Instructions)
	}
	return n
}
