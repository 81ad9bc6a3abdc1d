package cfg

import (
	"fmt"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// CFGBlock is the serializable form of a block.
type CFGBlock struct {
	ID           string    `json:"id"`           // Unique identifier for the block
	Kind         BlockKind `json:"kind"`         // Kind of block (entry, binary_branch, jump, ...)
	StartLine    int       `json:"start_line"`   // First source line of its operations
	EndLine      int       `json:"end_line"`     // Last source line of its operations
	Statements   []string  `json:"statements"`   // Operations in evaluation order
	Terminator   string    `json:"terminator,omitempty"`
	Predecessors []string  `json:"predecessors"` // IDs of blocks that can precede this block
}

// CFGEdge is the serializable form of an edge.
type CFGEdge struct {
	SourceID  string    `json:"source_id"`           // ID of the source block
	TargetID  string    `json:"target_id"`           // ID of the target block
	Label     EdgeLabel `json:"label,omitempty"`     // true, false, exception or empty
	Back      bool      `json:"back,omitempty"`      // Loop back-edge
	Condition string    `json:"condition,omitempty"` // Branch condition for labeled edges
}

// CFGInfo is a self-contained, serializer-friendly view of a graph that does
// not depend on any analysis type.
type CFGInfo struct {
	FunctionName         string              `json:"function_name"`
	Blocks               map[string]CFGBlock `json:"blocks"`
	Edges                []CFGEdge           `json:"edges"`
	EntryBlockID         string              `json:"entry_block_id"`
	ExitBlockIDs         []string            `json:"exit_block_ids"`
	CyclomaticComplexity int                 `json:"cyclomatic_complexity"`
}

func blockID(b *Block) string { return fmt.Sprintf("B%d", b.ID) }

// Export converts a graph for generic serializers.
func Export(name string, g *Graph) *CFGInfo {
	info := &CFGInfo{
		FunctionName:         name,
		Blocks:               make(map[string]CFGBlock, len(g.Blocks)),
		Edges:                make([]CFGEdge, 0),
		EntryBlockID:         blockID(g.Entry),
		ExitBlockIDs:         []string{blockID(g.Exit)},
		CyclomaticComplexity: CyclomaticComplexity(g),
	}

	for _, blk := range g.Blocks {
		cb := CFGBlock{
			ID:           blockID(blk),
			Kind:         blk.Kind,
			Statements:   make([]string, 0, len(blk.Instructions)),
			Predecessors: make([]string, 0, len(blk.Predecessors)),
		}
		for _, n := range blk.Instructions {
			cb.Statements = append(cb.Statements, Describe(n))
			cb.StartLine, cb.EndLine = widen(cb.StartLine, cb.EndLine, n.Pos())
		}
		if blk.Terminator != nil {
			cb.Terminator = Describe(blk.Terminator)
		}
		for _, p := range blk.Predecessors {
			cb.Predecessors = append(cb.Predecessors, blockID(p))
		}
		info.Blocks[cb.ID] = cb

		for _, e := range blk.Successors {
			edge := CFGEdge{SourceID: cb.ID, TargetID: blockID(e.To), Label: e.Label, Back: e.Back}
			if (e.Label == LabelTrue || e.Label == LabelFalse) && blk.Terminator != nil {
				edge.Condition = Describe(blk.Terminator)
			}
			info.Edges = append(info.Edges, edge)
		}
	}
	return info
}

func widen(start, end int, sp syntax.Span) (int, int) {
	if start == 0 || sp.StartLine < start {
		start = sp.StartLine
	}
	if sp.EndLine > end {
		end = sp.EndLine
	}
	return start, end
}

// CyclomaticComplexity counts decision points plus one: each binary branch
// adds one, each multi-way branch adds its extra successors.
func CyclomaticComplexity(g *Graph) int {
	complexity := 1
	for _, blk := range g.Blocks {
		switch blk.Kind {
		case BlockBinaryBranch:
			complexity++
		case BlockBranch:
			if n := len(blk.Successors); n > 1 {
				complexity += n - 1
			}
		}
	}
	return complexity
}
