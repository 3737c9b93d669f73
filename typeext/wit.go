package typeext

import (
	"go.bytecodealliance.org/wit"
)

// DeclareWITResources declares one dynamic type per resource type defined
// in resolve. Types are named "interface/resource" when the owning
// interface is named, otherwise by the bare resource name. The returned
// map is keyed by that name.
func (r *Registry) DeclareWITResources(resolve *wit.Resolve) (map[string]TypeID, error) {
	out := make(map[string]TypeID)
	if resolve == nil {
		return out, nil
	}
	for _, td := range resolve.TypeDefs {
		if _, ok := td.Kind.(*wit.Resource); !ok || td.Name == nil {
			continue
		}
		name := witResourceName(td)
		if id, exists := r.Lookup(name); exists {
			out[name] = id
			continue
		}
		id, err := r.Declare(name)
		if err != nil {
			return out, err
		}
		if err := r.SetOriginalName(id, name); err != nil {
			return out, err
		}
		out[name] = id
	}
	return out, nil
}

func witResourceName(td *wit.TypeDef) string {
	if iface, ok := td.Owner.(*wit.Interface); ok && iface.Name != nil {
		return *iface.Name + "/" + *td.Name
	}
	return *td.Name
}
