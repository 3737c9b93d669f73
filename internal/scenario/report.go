package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/objbridge/wrapper"
)

// Row describes one named object for tabular output.
type Row struct {
	Name      string
	Type      string
	Pointer   string
	Valid     bool
	Ownership string
	Parent    string
	Children  int
	Refs      int
	RefCount  int32
	Swept     bool
}

// Header returns the column titles matching Row.Strings.
func Header() []string {
	return []string{"Name", "Type", "Pointer", "Valid", "Owner", "Parent", "Children", "Refs", "RefCount", "State"}
}

// Strings formats the row as table cells.
func (r Row) Strings() []string {
	state := "live"
	if r.Swept {
		state = "swept"
	}
	parent := r.Parent
	if parent == "" {
		parent = "-"
	}
	return []string{
		r.Name,
		r.Type,
		r.Pointer,
		strconv.FormatBool(r.Valid),
		r.Ownership,
		parent,
		strconv.Itoa(r.Children),
		strconv.Itoa(r.Refs),
		strconv.Itoa(int(r.RefCount)),
		state,
	}
}

// Rows returns a row per named object in creation order.
func (r *Runner) Rows() []Row {
	rows := make([]Row, 0, len(r.order))
	for _, name := range r.order {
		o := r.objects[name]
		refs := 0
		for _, k := range o.ReferenceKeys() {
			refs += len(o.References(k))
		}
		rows = append(rows, Row{
			Name:      name,
			Type:      o.TypeName(),
			Pointer:   fmt.Sprintf("%#x", uint32(o.Pointer())),
			Valid:     o.IsValid(false),
			Ownership: o.Ownership().String(),
			Parent:    r.nameOf(o.Parent()),
			Children:  len(o.Children()),
			Refs:      refs,
			RefCount:  o.RefCount(),
			Swept:     o.Dealloced(),
		})
	}
	return rows
}

// Forest renders the parent/child graph of the live wrappers.
func (r *Runner) Forest() string {
	var b strings.Builder
	for _, root := range r.mgr.Roots() {
		r.writeNode(&b, root, "", "")
	}
	return b.String()
}

func (r *Runner) writeNode(b *strings.Builder, o *wrapper.Object, prefix, branch string) {
	b.WriteString(prefix)
	b.WriteString(branch)
	b.WriteString(r.nameOf(o))
	b.WriteString(" (")
	b.WriteString(o.String())
	b.WriteString(", ")
	b.WriteString(o.Ownership().String())
	if !o.IsValid(false) {
		b.WriteString(", invalid")
	}
	b.WriteString(")\n")

	switch branch {
	case "├── ":
		prefix += "│   "
	case "└── ":
		prefix += "    "
	}
	children := o.Children()
	for i, c := range children {
		next := "├── "
		if i == len(children)-1 {
			next = "└── "
		}
		r.writeNode(b, c, prefix, next)
	}
}
