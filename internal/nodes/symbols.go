package nodes

import "sort"

// Kind says where a symbol was defined.
type Kind int

const (
	// LDEF is a function-local definition.
	LDEF Kind = iota
	// GDEF is a module-level definition.
	GDEF
	// MDEF is a class member definition.
	MDEF
)

func (k Kind) String() string {
	switch k {
	case LDEF:
		return "Ldef"
	case GDEF:
		return "Gdef"
	case MDEF:
		return "Mdef"
	default:
		return "?"
	}
}

// SymbolNode is anything a symbol table entry can point at.
type SymbolNode interface {
	SymbolFullname() string
}

// SymbolTableNode is one symbol table entry.
type SymbolTableNode struct {
	Kind Kind
	Node SymbolNode
	// CrossRef is the fullname an import refers to. It is kept after the
	// import is resolved so unresolved imports can still be reported.
	CrossRef string
	// ModulePublic is false for names bound by "import x as _x" style aliases.
	ModulePublic bool
}

// Fullname returns the fullname of the referenced node, or CrossRef when the
// entry has not been resolved.
func (n *SymbolTableNode) Fullname() string {
	if n.Node != nil {
		return n.Node.SymbolFullname()
	}
	return n.CrossRef
}

// SymbolTable maps names to entries.
type SymbolTable map[string]*SymbolTableNode

// Keys returns the names in sorted order.
func (t SymbolTable) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MypyFile is one analyzed module.
type MypyFile struct {
	Fullname string
	Path     string
	IsStub   bool
	IsPkg    bool
	Defs     []Statement
	Names    SymbolTable
}

// SymbolFullname implements SymbolNode.
func (f *MypyFile) SymbolFullname() string { return f.Fullname }

// TypeInfo is the semantic model of a class.
type TypeInfo struct {
	Name     string
	Fullname string
	Module   string
	Defn     *ClassDef
	Names    SymbolTable
	Bases    []*Instance
	// MRO starts with the class itself.
	MRO []*TypeInfo
	// FallbackToAny is set when a base could not be resolved; attribute
	// lookups that miss then produce Any instead of an error.
	FallbackToAny bool
}

// NewTypeInfo returns an empty class model.
func NewTypeInfo(name, fullname, module string, defn *ClassDef) *TypeInfo {
	return &TypeInfo{
		Name:     name,
		Fullname: fullname,
		Module:   module,
		Defn:     defn,
		Names:    make(SymbolTable),
	}
}

// SymbolFullname implements SymbolNode.
func (ti *TypeInfo) SymbolFullname() string { return ti.Fullname }

// Get looks a member up along the MRO.
func (ti *TypeInfo) Get(name string) *SymbolTableNode {
	mro := ti.MRO
	if len(mro) == 0 {
		mro = []*TypeInfo{ti}
	}
	for _, cls := range mro {
		if n, ok := cls.Names[name]; ok {
			return n
		}
	}
	return nil
}

// GetMethod returns the first method called name along the MRO.
func (ti *TypeInfo) GetMethod(name string) *FuncDef {
	if n := ti.Get(name); n != nil {
		if f, ok := n.Node.(*FuncDef); ok {
			return f
		}
	}
	return nil
}

// HasBase reports whether fullname appears in the MRO.
func (ti *TypeInfo) HasBase(fullname string) bool {
	for _, cls := range ti.MRO {
		if cls.Fullname == fullname {
			return true
		}
	}
	return ti.Fullname == fullname
}

// HasUnknownBase reports whether any class in the MRO falls back to Any.
func (ti *TypeInfo) HasUnknownBase() bool {
	for _, cls := range ti.MRO {
		if cls.FallbackToAny {
			return true
		}
	}
	return ti.FallbackToAny
}

// Var is a variable: module global, class attribute or local.
type Var struct {
	Name     string
	Fullname string
	// Info is the owning class for attributes.
	Info *TypeInfo
	// Type is nil when the variable has no declared or inferred type yet.
	Type            Type
	IsInferred      bool
	IsClassVar      bool
	PluginGenerated bool
	// Annotation is kept until semantic analysis turns it into Type.
	Annotation Expression
	// Alias is the expression a module-level alias was assigned from.
	Alias Expression
}

// NewVar returns a variable without a type.
func NewVar(name string) *Var {
	return &Var{Name: name}
}

// SymbolFullname implements SymbolNode.
func (v *Var) SymbolFullname() string { return v.Fullname }

// SpecialForm stands for typing constructs such as Optional or Any.
type SpecialForm struct {
	Fullname string
}

// SymbolFullname implements SymbolNode.
func (s *SpecialForm) SymbolFullname() string { return s.Fullname }
