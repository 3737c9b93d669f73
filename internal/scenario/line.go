package scenario

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// flags are step fields that may be given bare to mean true.
var flags = []string{"owned", "exact", "append", "keep_ref", "valid", "swept"}

// expectFields are the keys of an expect line that belong to Expect.
var expectFields = []string{
	"valid", "ownership", "type", "parent", "children", "refs",
	"swept", "refcount", "target", "offset",
}

// ParseStep parses the one-line form of a step:
//
//	new w type=Widget native=Button owned
//	set_parent b parent=w
//	expect b valid=false ownership=native parent=w
//
// The first bare word after the op names the object (the new object for
// new and construct). Values are YAML scalars or flow collections.
func ParseStep(line string) (Step, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Step{}, fmt.Errorf("empty step")
	}
	op := Op(fields[0])
	if !slices.Contains(ops, op) {
		return Step{}, fmt.Errorf("unknown op %q", op)
	}

	var top, nested []string
	top = append(top, "op: "+string(op))
	named := false
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		switch {
		case ok && key != "":
		case slices.Contains(flags, f):
			key, value = f, "true"
		case !named:
			named = true
			key, value = "object", f
			if op == OpNew || op == OpConstruct {
				key = "name"
			}
		default:
			return Step{}, fmt.Errorf("unexpected %q", f)
		}
		if value == "" {
			value = `""`
		}
		entry := key + ": " + value
		if op == OpExpect && slices.Contains(expectFields, key) {
			nested = append(nested, "  "+entry)
		} else {
			top = append(top, entry)
		}
	}
	if len(nested) > 0 {
		top = append(top, "expect:")
		top = append(top, nested...)
	}

	var s Step
	if err := yaml.Unmarshal([]byte(strings.Join(top, "\n")), &s); err != nil {
		return Step{}, fmt.Errorf("parse step: %w", err)
	}
	return s, nil
}
