package syntax

import "strings"

// SymbolKind classifies a resolved symbol.
type SymbolKind string

const (
	SymbolLocal     SymbolKind = "local"
	SymbolParameter SymbolKind = "parameter"
	SymbolField     SymbolKind = "field"
	SymbolProperty  SymbolKind = "property"
	SymbolMethod    SymbolKind = "method"
	SymbolType      SymbolKind = "type"
	// SymbolTemp is a compiler-introduced temporary, never produced by a
	// front-end.
	SymbolTemp SymbolKind = "temp"
)

// Symbol is a resolved program symbol. Symbols are compared by pointer; a
// front-end must hand out one *Symbol per declaration.
type Symbol struct {
	Name string
	Kind SymbolKind
	Type *Type
	Decl Span
	// Captured is set by the front-end on locals and parameters that a
	// lambda or local function refers to. Their values may change whenever
	// the delegate runs.
	Captured bool
}

// Tracked reports whether the analysis keeps a binding for the symbol.
// Only locals, parameters and temporaries that are not captured are
// tracked.
func (s *Symbol) Tracked() bool {
	if s == nil || s.Captured {
		return false
	}
	switch s.Kind {
	case SymbolLocal, SymbolParameter, SymbolTemp:
		return true
	}
	return false
}

// TypeKind is the coarse classification the analysis needs from a type.
type TypeKind string

const (
	TypeUnknown       TypeKind = "unknown"
	TypeReference     TypeKind = "reference"
	TypeValue         TypeKind = "value"
	TypeNullableValue TypeKind = "nullable_value"
	TypeString        TypeKind = "string"
	TypeBool          TypeKind = "bool"
	TypeNumeric       TypeKind = "numeric"
	TypeCollection    TypeKind = "collection"
)

// Type is a resolved type.
type Type struct {
	Name string
	Kind TypeKind
}

// IsValueType reports whether values of the type can never be null.
func (t *Type) IsValueType() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeValue, TypeBool, TypeNumeric:
		return true
	}
	return false
}

// KindOf returns t.Kind, or TypeUnknown for a nil type.
func KindOf(t *Type) TypeKind {
	if t == nil {
		return TypeUnknown
	}
	return t.Kind
}

var (
	numericTypes = map[string]bool{
		"int": true, "long": true, "short": true, "byte": true, "sbyte": true,
		"uint": true, "ulong": true, "ushort": true, "nint": true, "nuint": true,
		"double": true, "float": true, "decimal": true, "char": true,
		"Int32": true, "Int64": true, "Int16": true, "Double": true, "Single": true, "Decimal": true,
	}
	valueTypes = map[string]bool{
		"DateTime": true, "TimeSpan": true, "Guid": true, "DateTimeOffset": true,
		"CancellationToken": true,
	}
	collectionTypes = []string{
		"List<", "IList<", "ICollection<", "IEnumerable<", "Dictionary<", "IDictionary<",
		"HashSet<", "ISet<", "Queue<", "Stack<", "LinkedList<", "SortedSet<",
		"SortedDictionary<", "IReadOnlyList<", "IReadOnlyCollection<", "ArrayList",
		"Collection<", "ObservableCollection<",
	}
)

// ParseType classifies a type as written in source. It is a best-effort
// classification for front-ends that lack full type resolution.
func ParseType(name string) *Type {
	name = strings.TrimSpace(name)
	if name == "" || name == "var" {
		return nil
	}
	t := &Type{Name: name, Kind: TypeReference}
	bare := strings.TrimPrefix(name, "System.")
	switch {
	case strings.HasPrefix(bare, "Nullable<"):
		t.Kind = TypeNullableValue
	case strings.HasSuffix(bare, "?"):
		inner := ParseType(strings.TrimSuffix(bare, "?"))
		if inner.IsValueType() {
			t.Kind = TypeNullableValue
		} else if inner != nil {
			t.Kind = inner.Kind
		}
	case bare == "string" || bare == "String":
		t.Kind = TypeString
	case bare == "bool" || bare == "Boolean":
		t.Kind = TypeBool
	case numericTypes[bare]:
		t.Kind = TypeNumeric
	case valueTypes[bare]:
		t.Kind = TypeValue
	case strings.HasSuffix(bare, "[]"):
		t.Kind = TypeCollection
	default:
		for _, prefix := range collectionTypes {
			if strings.HasPrefix(bare, prefix) {
				t.Kind = TypeCollection
				break
			}
		}
	}
	return t
}

// SemanticModel answers the symbol and type questions the analysis needs.
// Implementations return nil / false when they do not know.
type SemanticModel interface {
	SymbolOf(n Node) *Symbol
	TypeOf(n Node) *Type
	IsExtensionMethod(n Node) bool
	ConstantValueOf(n Node) (any, bool)
}

// MapModel is a SemanticModel backed by maps filled in by a front-end or a
// test. It is not safe for concurrent writes.
type MapModel struct {
	symbols    map[Node]*Symbol
	types      map[Node]*Type
	extensions map[Node]bool
	constants  map[Node]any
}

// NewMapModel returns an empty MapModel.
func NewMapModel() *MapModel {
	return &MapModel{
		symbols:    make(map[Node]*Symbol),
		types:      make(map[Node]*Type),
		extensions: make(map[Node]bool),
		constants:  make(map[Node]any),
	}
}

// Bind records the symbol a node refers to.
func (m *MapModel) Bind(n Node, s *Symbol) { m.symbols[n] = s }

// SetType records the type of an expression.
func (m *MapModel) SetType(n Node, t *Type) { m.types[n] = t }

// MarkExtension records that an invocation targets an extension method.
func (m *MapModel) MarkExtension(n Node) { m.extensions[n] = true }

// SetConstant records a compile-time constant value.
func (m *MapModel) SetConstant(n Node, v any) { m.constants[n] = v }

func (m *MapModel) SymbolOf(n Node) *Symbol { return m.symbols[n] }

// TypeOf falls back to the bound symbol's type.
func (m *MapModel) TypeOf(n Node) *Type {
	if t, ok := m.types[n]; ok {
		return t
	}
	if s := m.symbols[n]; s != nil {
		return s.Type
	}
	return nil
}

func (m *MapModel) IsExtensionMethod(n Node) bool { return m.extensions[n] }

func (m *MapModel) ConstantValueOf(n Node) (any, bool) {
	v, ok := m.constants[n]
	return v, ok
}
