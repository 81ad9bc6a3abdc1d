// Package csharp lowers C# source parsed by tree-sitter into syntax trees
// and a scope-based semantic model. Symbol and type information is
// heuristic: names resolve against locals, parameters and the members
// declared in the same file, and types are classified from how they are
// written.
package csharp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// ErrNoTree is returned when tree-sitter produces no tree at all.
var ErrNoTree = errors.New("parser produced no tree")

// File is a lowered source file. All procedures share one model.
type File struct {
	Path       string
	Procedures []*syntax.Procedure
	Model      *syntax.MapModel
	// SyntaxErrors counts ERROR and MISSING nodes in the parse tree.
	SyntaxErrors int
}

// Procedure returns the procedure with the given qualified name
// (Class.Method), or nil.
func (f *File) Procedure(name string) *syntax.Procedure {
	for _, p := range f.Procedures {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Names returns the qualified names of all procedures in source order.
func (f *File) Names() []string {
	names := make([]string, len(f.Procedures))
	for i, p := range f.Procedures {
		names[i] = p.Name
	}
	return names
}

// Parser lowers C# files. The zero value is not usable; call NewParser.
type Parser struct {
	lang *sitter.Language
}

// NewParser creates a C# parser.
func NewParser() *Parser {
	return &Parser{lang: csharp.GetLanguage()}
}

// ParseFile reads and lowers the file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return p.Parse(ctx, path, content)
}

// Parse lowers content. Syntax errors do not fail the parse: tree-sitter
// recovers and the affected statements lower to unsupported nodes.
func (p *Parser) Parse(ctx context.Context, path string, content []byte) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing file %s: %w", path, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoTree)
	}
	defer tree.Close()

	root := tree.RootNode()
	f := &File{Path: path, Model: syntax.NewMapModel(), SyntaxErrors: countErrors(root)}

	decls := collectDeclarations(root, content)
	for _, m := range decls.members {
		l := newLowerer(content, f.Model, decls, m.class)
		proc := l.procedure(m)
		if proc != nil {
			f.Procedures = append(f.Procedures, proc)
		}
	}
	sort.SliceStable(f.Procedures, func(i, j int) bool {
		return f.Procedures[i].Span.Before(f.Procedures[j].Span)
	})
	return f, nil
}

func countErrors(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.IsError() || n.IsMissing() {
		count++
	}
	if !n.HasError() {
		return count
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		count += countErrors(n.Child(i))
	}
	return count
}
