package csharp

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// classInfo holds the members of one type declaration that method bodies
// can refer to by simple name.
type classInfo struct {
	name    string
	members map[string]*syntax.Symbol
	// returns maps method names to declared return types; void methods map
	// to nil.
	returns   map[string]*syntax.Type
	constants map[*syntax.Symbol]any
}

func newClassInfo(name string) *classInfo {
	return &classInfo{
		name:      name,
		members:   make(map[string]*syntax.Symbol),
		returns:   make(map[string]*syntax.Type),
		constants: make(map[*syntax.Symbol]any),
	}
}

// memberKind says how a procedure node is shaped.
type memberKind int

const (
	memberMethod memberKind = iota
	memberConstructor
	memberAccessor
	memberArrowProperty
	memberLocalFunction
	memberTopLevel
)

// member is one analyzable body found in the file.
type member struct {
	class *classInfo
	kind  memberKind
	name  string
	node  *sitter.Node
	// owner is the declaring property of an accessor.
	owner *sitter.Node
	// statements holds the global statements of a top-level program.
	statements []*sitter.Node
}

type declarations struct {
	content    []byte
	members    []*member
	extensions map[string]bool
}

var typeDeclarations = map[string]bool{
	"class_declaration":         true,
	"struct_declaration":        true,
	"record_declaration":        true,
	"record_struct_declaration": true,
	"interface_declaration":     true,
}

// collectDeclarations finds every type declaration and the bodies inside
// it, plus the names of extension methods declared in the file.
func collectDeclarations(root *sitter.Node, content []byte) *declarations {
	d := &declarations{content: content, extensions: make(map[string]bool)}
	var globals []*sitter.Node
	d.walk(root, &globals)
	if len(globals) > 0 {
		program := newClassInfo("Program")
		d.members = append(d.members, &member{class: program, kind: memberTopLevel, name: "Program.<Main>$", node: root, statements: globals})
		for _, g := range globals {
			d.localFunctions(program, "Program.<Main>$", g)
		}
	}
	return d
}

func (d *declarations) walk(n *sitter.Node, globals *[]*sitter.Node) {
	if n == nil {
		return
	}
	if typeDeclarations[n.Type()] {
		d.typeDeclaration(n)
		return
	}
	if n.Type() == "global_statement" {
		if s := firstExpression(n); s != nil {
			*globals = append(*globals, s)
		}
		return
	}
	for _, c := range namedChildren(n) {
		d.walk(c, globals)
	}
}

func (d *declarations) typeDeclaration(n *sitter.Node) {
	nameNode := field(n, "name")
	if nameNode == nil {
		nameNode = childOfType(n, "identifier")
	}
	class := newClassInfo(getNodeText(nameNode, d.content))
	body := field(n, "body")
	if body == nil {
		body = childOfType(n, "declaration_list", "class_body")
	}

	// Members first so that bodies resolve names declared after them.
	for _, m := range namedChildren(body) {
		d.declareMember(class, m)
	}
	for _, m := range namedChildren(body) {
		if typeDeclarations[m.Type()] {
			d.typeDeclaration(m)
			continue
		}
		d.bodies(class, m)
	}
}

func (d *declarations) declareMember(class *classInfo, n *sitter.Node) {
	switch n.Type() {
	case "field_declaration", "event_field_declaration":
		decl := childOfType(n, "variable_declaration")
		typ := getNodeText(field(decl, "type"), d.content)
		isConst := hasToken(n, d.content, "const")
		for _, v := range namedChildren(decl) {
			if v.Type() != "variable_declarator" {
				continue
			}
			name, init := declarator(v, d.content)
			sym := &syntax.Symbol{Name: name, Kind: syntax.SymbolField, Type: syntax.ParseType(typ), Decl: spanOf(v)}
			class.members[name] = sym
			if isConst {
				if val, ok := literalValue(init, d.content); ok {
					class.constants[sym] = val
				}
			}
		}
	case "property_declaration":
		name := getNodeText(field(n, "name"), d.content)
		typ := getNodeText(field(n, "type"), d.content)
		class.members[name] = &syntax.Symbol{Name: name, Kind: syntax.SymbolProperty, Type: syntax.ParseType(typ), Decl: spanOf(n)}
	case "method_declaration":
		name := getNodeText(field(n, "name"), d.content)
		ret := getNodeText(field(n, "returns", "type"), d.content)
		if ret == "void" {
			class.returns[name] = nil
		} else {
			class.returns[name] = syntax.ParseType(ret)
		}
		if params := namedChildren(field(n, "parameters")); len(params) > 0 && hasToken(params[0], d.content, "this") {
			d.extensions[name] = true
		}
	}
}

// bodies records the analyzable bodies of a member.
func (d *declarations) bodies(class *classInfo, n *sitter.Node) {
	switch n.Type() {
	case "method_declaration", "operator_declaration", "conversion_operator_declaration":
		name := class.name + "." + getNodeText(field(n, "name"), d.content)
		if n.Type() != "method_declaration" {
			name = class.name + ".op"
		}
		d.members = append(d.members, &member{class: class, kind: memberMethod, name: name, node: n})
		d.localFunctions(class, name, n)
	case "constructor_declaration":
		name := class.name + ".ctor"
		d.members = append(d.members, &member{class: class, kind: memberConstructor, name: name, node: n})
		d.localFunctions(class, name, n)
	case "property_declaration", "indexer_declaration":
		prop := getNodeText(field(n, "name"), d.content)
		if n.Type() == "indexer_declaration" {
			prop = "this[]"
		}
		if arrow := childOfType(n, "arrow_expression_clause"); arrow != nil {
			d.members = append(d.members, &member{class: class, kind: memberArrowProperty, name: class.name + "." + prop + ".get", node: arrow, owner: n})
			return
		}
		for _, acc := range namedChildren(childOfType(n, "accessor_list", "accessors")) {
			if acc.Type() != "accessor_declaration" {
				continue
			}
			if childOfType(acc, "block", "arrow_expression_clause") == nil {
				continue
			}
			keyword := "get"
			for _, k := range []string{"set", "init", "add", "remove"} {
				if hasToken(acc, d.content, k) {
					keyword = k
				}
			}
			d.members = append(d.members, &member{class: class, kind: memberAccessor, name: class.name + "." + prop + "." + keyword, node: acc, owner: n})
		}
	}
}

// localFunctions registers local functions nested anywhere in n.
func (d *declarations) localFunctions(class *classInfo, outer string, n *sitter.Node) {
	for _, c := range namedChildren(n) {
		if c.Type() == "local_function_statement" {
			name := outer + "." + getNodeText(field(c, "name"), d.content)
			d.members = append(d.members, &member{class: class, kind: memberLocalFunction, name: name, node: c})
			d.localFunctions(class, name, c)
			continue
		}
		if c.Type() == "lambda_expression" || c.Type() == "anonymous_method_expression" {
			continue
		}
		d.localFunctions(class, outer, c)
	}
}

// declarator returns the name and initializer of a variable_declarator.
// Older grammars wrap the initializer in an equals_value_clause.
func declarator(n *sitter.Node, content []byte) (string, *sitter.Node) {
	nameNode := field(n, "name")
	if nameNode == nil {
		nameNode = childOfType(n, "identifier")
	}
	var init *sitter.Node
	seenEq := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch {
		case c == nil:
		case c.Type() == "equals_value_clause":
			init = firstExpression(c)
		case c.Type() == "=":
			seenEq = true
		case seenEq && c.IsNamed() && c.Type() != "comment":
			init = c
			seenEq = false
		}
	}
	return getNodeText(nameNode, content), init
}
