package nodes

// promotions lists implicit numeric promotions.
var promotions = map[string][]string{
	"builtins.int":   {"builtins.float", "builtins.complex"},
	"builtins.bool":  {"builtins.float", "builtins.complex"},
	"builtins.float": {"builtins.complex"},
}

// IsSubtype reports whether a value of type left may be used where right is
// expected.
func IsSubtype(left, right Type) bool {
	if _, ok := right.(*AnyType); ok {
		return true
	}
	if _, ok := left.(*AnyType); ok {
		return true
	}

	if u, ok := left.(*UnionType); ok {
		for _, item := range u.Items {
			if !IsSubtype(item, right) {
				return false
			}
		}
		return true
	}
	if u, ok := right.(*UnionType); ok {
		for _, item := range u.Items {
			if IsSubtype(left, item) {
				return true
			}
		}
		return false
	}

	switch l := left.(type) {
	case *NoneType:
		switch r := right.(type) {
		case *NoneType:
			return true
		case *Instance:
			return r.Type.Fullname == "builtins.object"
		}
		return false

	case *Instance:
		r, ok := right.(*Instance)
		if !ok {
			return false
		}
		return isInstanceSubtype(l, r)

	case *TypeType:
		switch r := right.(type) {
		case *TypeType:
			return isInstanceSubtype(l.Item, r.Item)
		case *Instance:
			return r.Type.Fullname == "builtins.type" || r.Type.Fullname == "builtins.object"
		}
	}
	return false
}

func isInstanceSubtype(left, right *Instance) bool {
	if right.Type.Fullname == "builtins.object" {
		return true
	}
	for _, target := range promotions[left.Type.Fullname] {
		if target == right.Type.Fullname {
			return true
		}
	}
	if left.Type.HasUnknownBase() && left.Type != right.Type {
		return true
	}
	if !left.Type.HasBase(right.Type.Fullname) {
		return false
	}
	if left.Type.Fullname != right.Type.Fullname || len(right.Args) == 0 || len(left.Args) == 0 {
		return true
	}
	if len(left.Args) != len(right.Args) {
		return false
	}
	for i := range left.Args {
		if !IsSameType(left.Args[i], right.Args[i]) {
			return false
		}
	}
	return true
}

// IsSameType reports mutual compatibility.
func IsSameType(a, b Type) bool {
	return IsSubtype(a, b) && IsSubtype(b, a)
}
