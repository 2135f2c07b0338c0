package nodes

import (
	"strings"
)

// Type is a checker type.
type Type interface {
	// String renders the fully qualified form, e.g. "builtins.int".
	String() string
	// Short renders the form used in error messages, e.g. "int".
	Short() string
	typeNode()
}

// TypeOfAny records where an Any came from.
type TypeOfAny int

const (
	// Unannotated is Any inferred for a missing annotation.
	Unannotated TypeOfAny = iota
	// Explicit is Any written by the user.
	Explicit
	// FromError is Any produced after an error was reported.
	FromError
	// SpecialFormAny is Any used for constructs the checker does not model.
	SpecialFormAny
	// ImplementationArtifact is Any produced because a stub or plugin input
	// was incomplete.
	ImplementationArtifact
)

func (r TypeOfAny) String() string {
	switch r {
	case Unannotated:
		return "unannotated"
	case Explicit:
		return "explicit"
	case FromError:
		return "from_error"
	case SpecialFormAny:
		return "special_form"
	case ImplementationArtifact:
		return "implementation_artifact"
	default:
		return "unknown"
	}
}

// Instance is an instance of a class, possibly generic.
type Instance struct {
	Type *TypeInfo
	Args []Type
}

// NewInstance returns an instance of info with the given type arguments.
func NewInstance(info *TypeInfo, args ...Type) *Instance {
	return &Instance{Type: info, Args: args}
}

func (t *Instance) String() string {
	if len(t.Args) == 0 {
		return t.Type.Fullname
	}
	return t.Type.Fullname + "[" + joinTypes(t.Args, Type.String) + "]"
}

// legacyAliases maps builtin generics to the names error messages use.
var legacyAliases = map[string]string{
	"builtins.list":  "List",
	"builtins.dict":  "Dict",
	"builtins.set":   "Set",
	"builtins.tuple": "Tuple",
}

func (t *Instance) Short() string {
	if len(t.Args) == 0 {
		return t.Type.Name
	}
	name := t.Type.Name
	if alias, ok := legacyAliases[t.Type.Fullname]; ok {
		name = alias
	}
	return name + "[" + joinTypes(t.Args, Type.Short) + "]"
}

// AnyType is the dynamic type.
type AnyType struct {
	Reason TypeOfAny
}

// NewAny returns an Any with the given provenance.
func NewAny(reason TypeOfAny) *AnyType {
	return &AnyType{Reason: reason}
}

func (t *AnyType) String() string { return "Any" }
func (t *AnyType) Short() string  { return "Any" }

// NoneType is the type of None.
type NoneType struct{}

func (t *NoneType) String() string { return "None" }
func (t *NoneType) Short() string  { return "None" }

// UnionType is a flattened union with at least two distinct items.
type UnionType struct {
	Items []Type
}

func (t *UnionType) String() string {
	return "Union[" + joinTypes(t.Items, Type.String) + "]"
}

func (t *UnionType) Short() string {
	if len(t.Items) == 2 {
		for i, item := range t.Items {
			if _, ok := item.(*NoneType); ok {
				return "Optional[" + t.Items[1-i].Short() + "]"
			}
		}
	}
	return "Union[" + joinTypes(t.Items, Type.Short) + "]"
}

// TypeType is the type of a class object.
type TypeType struct {
	Item *Instance
}

func (t *TypeType) String() string { return "Type[" + t.Item.String() + "]" }
func (t *TypeType) Short() string  { return "Type[" + t.Item.Short() + "]" }

func (*Instance) typeNode()  {}
func (*AnyType) typeNode()   {}
func (*NoneType) typeNode()  {}
func (*UnionType) typeNode() {}
func (*TypeType) typeNode()  {}

// MakeUnion flattens nested unions and drops duplicates. It returns the sole
// item when only one is left.
func MakeUnion(items ...Type) Type {
	var flat []Type
	seen := make(map[string]bool)
	var add func(t Type)
	add = func(t Type) {
		if u, ok := t.(*UnionType); ok {
			for _, item := range u.Items {
				add(item)
			}
			return
		}
		key := t.String()
		if seen[key] {
			return
		}
		seen[key] = true
		flat = append(flat, t)
	}
	for _, t := range items {
		if t != nil {
			add(t)
		}
	}
	switch len(flat) {
	case 0:
		return &NoneType{}
	case 1:
		return flat[0]
	default:
		return &UnionType{Items: flat}
	}
}

// MakeOptional returns Union[t, None].
func MakeOptional(t Type) Type {
	return MakeUnion(t, &NoneType{})
}

func joinTypes(types []Type, render func(Type) string) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = render(t)
	}
	return strings.Join(parts, ", ")
}
