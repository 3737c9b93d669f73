package wrapper

import (
	"testing"

	"github.com/wippyai/objbridge/host"
)

type counted struct {
	name string
	refs int
}

func (c *counted) IncRef() { c.refs++ }
func (c *counted) DecRef() { c.refs-- }

func refsEqual(got []host.Object, want ...host.Object) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestKeepReference_Replace(t *testing.T) {
	f := newFixture(t)
	o := f.wrap(t, f.base, 0x100, false)
	r1 := &counted{name: "r1"}
	r2 := &counted{name: "r2"}

	o.KeepReference("k", r1, false)
	o.KeepReference("k", r2, false)

	if !refsEqual(o.References("k"), r2) {
		t.Fatalf("References(k) = %v, want [r2]", o.References("k"))
	}
	if r1.refs != 0 || r2.refs != 1 {
		t.Fatalf("refs r1=%d r2=%d, want 0 and 1", r1.refs, r2.refs)
	}

	// Replacing with the same referent does not take a second reference
	o.KeepReference("k", r2, false)
	if r2.refs != 1 {
		t.Fatalf("r2 refs = %d, want 1", r2.refs)
	}
}

func TestKeepReference_Append(t *testing.T) {
	f := newFixture(t)
	o := f.wrap(t, f.base, 0x100, false)
	r1 := &counted{name: "r1"}
	r2 := &counted{name: "r2"}

	o.KeepReference("k", r1, true)
	o.KeepReference("k", r2, true)
	o.KeepReference("k", r1, true)

	if !refsEqual(o.References("k"), r1, r2) {
		t.Fatalf("References(k) = %v, want [r1 r2]", o.References("k"))
	}
	if r1.refs != 1 || r2.refs != 1 {
		t.Fatalf("refs r1=%d r2=%d, want 1 each", r1.refs, r2.refs)
	}

	// A replace drops everything else under the key
	o.KeepReference("k", r2, false)
	if !refsEqual(o.References("k"), r2) || r1.refs != 0 || r2.refs != 1 {
		t.Fatalf("after replace: %v r1=%d r2=%d", o.References("k"), r1.refs, r2.refs)
	}
}

func TestKeepReference_NilClears(t *testing.T) {
	f := newFixture(t)
	o := f.wrap(t, f.base, 0x100, false)
	r := &counted{}

	o.KeepReference("k", r, true)
	o.KeepReference("k", nil, true)
	if r.refs != 1 {
		t.Fatal("nil append must not change anything")
	}

	o.KeepReference("k", nil, false)
	if r.refs != 0 || len(o.References("k")) != 0 {
		t.Fatal("nil replace should clear the key")
	}
	if len(o.ReferenceKeys()) != 0 {
		t.Fatalf("ReferenceKeys() = %v, want none", o.ReferenceKeys())
	}
}

func TestRemoveReference(t *testing.T) {
	f := newFixture(t)
	o := f.wrap(t, f.base, 0x100, false)
	r1 := &counted{}
	r2 := &counted{}

	o.KeepReference("k", r1, true)
	o.KeepReference("k", r2, true)

	o.RemoveReference("k", r1)
	if !refsEqual(o.References("k"), r2) {
		t.Fatalf("References(k) = %v, want [r2]", o.References("k"))
	}
	if r1.refs != 0 {
		t.Fatalf("r1 refs = %d, want 0", r1.refs)
	}

	// Absent entries are a no-op
	o.RemoveReference("k", r1)
	o.RemoveReference("missing", r2)
	if r1.refs != 0 || r2.refs != 1 {
		t.Fatalf("no-op removal changed counts: r1=%d r2=%d", r1.refs, r2.refs)
	}

	o.RemoveReference("k", r2)
	if len(o.ReferenceKeys()) != 0 {
		t.Fatal("empty key should disappear")
	}
}

func TestKeepReference_ReleasedOnDealloc(t *testing.T) {
	f := newFixture(t)
	o := f.wrap(t, f.base, 0x100, false)
	a := &counted{}
	b := &counted{}

	o.KeepReference("x", a, false)
	o.KeepReference("y", b, true)
	if keys := o.ReferenceKeys(); len(keys) != 2 || keys[0] != "x" || keys[1] != "y" {
		t.Fatalf("ReferenceKeys() = %v", keys)
	}

	o.DecRef()
	if a.refs != 0 || b.refs != 0 {
		t.Fatalf("refs a=%d b=%d, want 0 after dealloc", a.refs, b.refs)
	}

	// Keeping on a swept object is ignored
	o.KeepReference("x", a, false)
	if a.refs != 0 {
		t.Fatal("swept object took a reference")
	}
}

func TestKeepReference_WrapperReferent(t *testing.T) {
	f := newFixture(t)
	owner := f.wrap(t, f.base, 0x100, false)
	arg := f.wrap(t, f.base, 0x200, true)

	owner.KeepReference("setModel(Model*)", arg, false)
	arg.DecRef()
	if arg.Dealloced() {
		t.Fatal("kept argument swept while referenced")
	}

	owner.DecRef()
	if !arg.Dealloced() {
		t.Fatal("argument should be swept with its keeper")
	}
	if len(f.destroyed) != 1 || f.destroyed[0] != 0x200 {
		t.Fatalf("destroyed = %v, want the owned argument", f.destroyed)
	}
}

func TestDestroy_ReleasesReferences(t *testing.T) {
	f := newFixture(t)
	o := f.wrap(t, f.base, 0x100, false)
	r := &counted{}
	o.KeepReference("k", r, false)

	f.mgr.Destroy(o)

	if r.refs != 0 {
		t.Fatalf("refs = %d, want 0 after native destruction", r.refs)
	}
	if o.Dealloced() {
		t.Fatal("the caller still holds the wrapper")
	}
}
