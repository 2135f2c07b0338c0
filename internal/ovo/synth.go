package ovo

import (
	"github.com/ovo-tools/ovocheck/internal/nodes"
)

// addMemberToClass defines a typed member variable on a class, replacing any
// earlier definition of the same name.
func (p *VersionedObjectPlugin) addMemberToClass(name string, t nodes.Type, info *nodes.TypeInfo) {
	v := nodes.NewVar(name)
	v.Info = info
	v.Fullname = info.Fullname + "." + name
	v.Type = t
	v.PluginGenerated = true

	info.Names[name] = &nodes.SymbolTableNode{Kind: nodes.MDEF, Node: v}
	p.logf("Defined o.vo field: %s.%s as %s", info.Fullname, name, t)
}
