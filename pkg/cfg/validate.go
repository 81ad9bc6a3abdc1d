package cfg

import (
	"fmt"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// Validate checks the structural invariants of a graph:
//   - the entry has no predecessors and the exit no successors;
//   - every other block has at least one successor;
//   - every block is reachable from the entry (the exit may be unreachable
//     when the procedure never terminates normally);
//   - binary branches have exactly one true and one false edge;
//   - no operation appears in more than one block.
func Validate(g *Graph) error {
	if g.Entry == nil || g.Exit == nil {
		return &InvariantError{Block: -1, Reason: "missing entry or exit"}
	}
	if len(g.Entry.Predecessors) > 0 {
		return &InvariantError{Block: g.Entry.ID, Reason: "entry has predecessors"}
	}
	if len(g.Exit.Successors) > 0 {
		return &InvariantError{Block: g.Exit.ID, Reason: "exit has successors"}
	}

	reachable := make(map[*Block]bool, len(g.Blocks))
	stack := []*Block{g.Entry}
	reachable[g.Entry] = true
	for len(stack) > 0 {
		blk := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range blk.Successors {
			if !reachable[e.To] {
				reachable[e.To] = true
				stack = append(stack, e.To)
			}
		}
	}

	seen := make(map[syntax.Node]int)
	for i, blk := range g.Blocks {
		if blk.ID != i {
			return &InvariantError{Block: blk.ID, Reason: fmt.Sprintf("block numbered %d at position %d", blk.ID, i)}
		}
		if blk != g.Exit && len(blk.Successors) == 0 {
			return &InvariantError{Block: blk.ID, Reason: "block has no successors"}
		}
		if blk != g.Exit && !reachable[blk] {
			return &InvariantError{Block: blk.ID, Reason: "block is unreachable from entry"}
		}
		if blk.Kind == BlockBinaryBranch {
			if err := checkBinaryBranch(blk); err != nil {
				return err
			}
		}
		for _, n := range blk.Instructions {
			if prev, dup := seen[n]; dup {
				return &InvariantError{Block: blk.ID, Reason: fmt.Sprintf("operation %q also in block %d", syntax.Format(n), prev)}
			}
			seen[n] = blk.ID
		}
	}
	return nil
}

func checkBinaryBranch(blk *Block) error {
	if len(blk.Successors) != 2 {
		return &InvariantError{Block: blk.ID, Reason: fmt.Sprintf("binary branch has %d successors", len(blk.Successors))}
	}
	if blk.TrueSuccessor() == nil || blk.FalseSuccessor() == nil {
		return &InvariantError{Block: blk.ID, Reason: "binary branch lacks a true or false edge"}
	}
	if blk.Terminator == nil {
		return &InvariantError{Block: blk.ID, Reason: "binary branch without condition"}
	}
	return nil
}
