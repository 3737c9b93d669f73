package wrapper

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/objbridge/errors"
)

func hasChild(p, c *Object) bool {
	for _, ch := range p.Children() {
		if ch == c {
			return true
		}
	}
	return false
}

func TestSetParent_Attach(t *testing.T) {
	f := newFixture(t)
	p := f.wrap(t, f.base, 0x100, true)
	c := f.wrap(t, f.base, 0x200, true)

	f.mgr.SetParent(p, c)

	if c.Parent() != p || !hasChild(p, c) {
		t.Fatal("edge not recorded")
	}
	if c.RefCount() != 2 {
		t.Fatalf("RefCount() = %d, want 2 (caller + parent)", c.RefCount())
	}
	if c.Ownership() != OwnershipNative {
		t.Fatalf("attached child ownership = %s, want native", c.Ownership())
	}
	if !c.HasParentInfo() || !p.HasParentInfo() {
		t.Fatal("both ends should have parent info")
	}

	// Attaching again is a no-op
	f.mgr.SetParent(p, c)
	if c.RefCount() != 2 || len(p.Children()) != 1 {
		t.Fatal("repeated SetParent changed the graph")
	}

	// Self edges are ignored
	f.mgr.SetParent(p, p)
	if p.Parent() != nil {
		t.Fatal("object became its own parent")
	}
}

func TestSetParent_Reparent(t *testing.T) {
	f := newFixture(t)
	p := f.wrap(t, f.base, 0x100, false)
	p2 := f.wrap(t, f.base, 0x200, false)
	c := f.wrap(t, f.base, 0x300, false)

	f.mgr.SetParent(p, c)
	f.mgr.SetParent(p2, c)

	if !hasChild(p2, c) {
		t.Fatal("c should be a child of p2")
	}
	if hasChild(p, c) {
		t.Fatal("c should no longer be a child of p")
	}
	if c.Parent() != p2 {
		t.Fatal("back-edge should point at p2")
	}
	if c.RefCount() != 2 {
		t.Fatalf("RefCount() = %d, want 2: the edge reference moves", c.RefCount())
	}
}

func TestSetParent_NilDetaches(t *testing.T) {
	f := newFixture(t)
	p := f.wrap(t, f.base, 0x100, false)
	c := f.wrap(t, f.base, 0x200, true)

	f.mgr.SetParent(p, c)
	f.mgr.SetParent(nil, c)

	if c.Parent() != nil {
		t.Fatal("child should be a root")
	}
	if hasChild(p, c) {
		t.Fatal("parent still lists the child")
	}
	if c.Ownership() != OwnershipNative {
		t.Fatalf("Ownership() = %s, want native", c.Ownership())
	}
	if c.RefCount() != 1 {
		t.Fatalf("RefCount() = %d, want 1", c.RefCount())
	}

	// Typed nil parent behaves the same
	f.mgr.SetParent(p, c)
	f.mgr.SetParent((*Object)(nil), c)
	if c.Parent() != nil {
		t.Fatal("typed nil parent should detach")
	}

	// Non-wrapper values are ignored
	f.mgr.SetParent(p, "not a wrapper")
	f.mgr.SetParent("not a wrapper", c)
	if len(p.Children()) != 0 || c.Parent() != nil {
		t.Fatal("non-wrapper values changed the graph")
	}
}

func TestRemoveParent_Ownership(t *testing.T) {
	f := newFixture(t)
	p := f.wrap(t, f.base, 0x100, false)
	c := f.wrap(t, f.base, 0x200, false)

	f.mgr.SetParent(p, c)
	c.RemoveParent(false, false)

	if c.Parent() != nil || hasChild(p, c) {
		t.Fatal("edge not removed")
	}
	if !c.HasOwnership() {
		t.Fatal("without giveOwnershipBack the wrapper owns the object")
	}
	if c.RefCount() != 1 {
		t.Fatalf("RefCount() = %d, want 1", c.RefCount())
	}

	// Removing a missing edge does nothing
	c.RemoveParent(true, false)
	if !c.HasOwnership() || c.RefCount() != 1 {
		t.Fatal("RemoveParent on a root changed state")
	}
}

func TestRemoveParent_KeepReference(t *testing.T) {
	f := newFixture(t)
	p := f.wrap(t, f.base, 0x100, false)
	c := f.wrap(t, f.base, 0x200, false)

	f.mgr.SetParent(p, c)
	c.RemoveParent(true, true)

	if c.Parent() != nil {
		t.Fatal("edge not removed")
	}
	if c.RefCount() != 2 {
		t.Fatalf("RefCount() = %d, want 2: edge reference kept", c.RefCount())
	}

	c.DecRef()
	if c.Dealloced() {
		t.Fatal("kept reference should keep the wrapper alive")
	}

	f.mgr.Destroy(c)
	if !c.Dealloced() {
		t.Fatal("native destruction should release the kept reference")
	}
}

func TestRemoveParent_KeepReferenceWrapperOwned(t *testing.T) {
	f := newFixture(t)
	p := f.wrap(t, f.base, 0x100, false)
	c := f.wrap(t, f.base, 0x200, false)

	f.mgr.SetParent(p, c)
	c.RemoveParent(false, true)

	if !c.HasOwnership() {
		t.Fatal("without giveOwnershipBack the wrapper owns the object")
	}
	if c.RefCount() != 1 {
		t.Fatalf("RefCount() = %d, want 1: nothing native will destroy c", c.RefCount())
	}

	c.DecRef()
	if !c.Dealloced() {
		t.Fatal("dropping the caller's reference should sweep c")
	}
	if len(f.destroyed) != 1 || f.destroyed[0] != 0x200 {
		t.Fatalf("destroyed = %v, want [0x200]", f.destroyed)
	}

	// A native shim destroys its object later, so the reference is kept
	s := f.wrap(t, f.base, 0x300, false)
	s.SetHasCppWrapper(true)
	f.mgr.SetParent(p, s)
	s.RemoveParent(false, true)
	if s.RefCount() != 2 {
		t.Fatalf("shim RefCount() = %d, want 2", s.RefCount())
	}
	s.DecRef()
	if s.Dealloced() {
		t.Fatal("kept reference should keep the shim alive")
	}
}

func TestGetOwnership_ChildStaysWithContainer(t *testing.T) {
	f := newFixture(t)
	p := f.wrap(t, f.base, 0x100, false)
	c := f.wrap(t, f.base, 0x200, false)

	f.mgr.SetParent(p, c)
	c.GetOwnership()
	if c.HasOwnership() || c.Ownership() != OwnershipNative {
		t.Fatalf("child ownership = %s, want native while attached", c.Ownership())
	}
	GetOwnershipOf([]*Object{c})
	if c.HasOwnership() {
		t.Fatal("sequence overload must not take a child from its container")
	}

	c.Detach()
	c.GetOwnership()
	if !c.HasOwnership() {
		t.Fatal("a detached object can be owned by its wrapper")
	}
}

func TestSweptWrapper_IgnoresStateChanges(t *testing.T) {
	f := newFixture(t)
	stale := f.wrap(t, f.base, 0x100, false)
	stale.DecRef()
	if !stale.Dealloced() {
		t.Fatal("stale should be swept")
	}

	fresh := f.wrap(t, f.base, 0x200, false)
	if fresh.Handle() != stale.Handle() {
		t.Fatalf("slot %d not reused by fresh (%d)", stale.Handle(), fresh.Handle())
	}

	stale.MakeValid()
	stale.SetValidCpp(true)
	stale.GetOwnership()
	stale.ReleaseOwnership()

	if stale.IsValid(false) {
		t.Fatal("a swept wrapper must stay invalid")
	}
	if _, ok := f.mgr.Retrieve(0x100); ok {
		t.Fatal("a swept wrapper must not rebind its pointer")
	}
	if got, ok := f.mgr.Retrieve(0x200); !ok || got != fresh {
		t.Fatal("fresh should stay bound to its pointer")
	}
	if fresh.Ownership() != OwnershipNative {
		t.Fatalf("fresh ownership = %s", fresh.Ownership())
	}
}

func TestSetParent_RefusesCycle(t *testing.T) {
	f := newFixture(t)
	a := f.wrap(t, f.base, 0x100, false)
	b := f.wrap(t, f.base, 0x200, false)
	c := f.wrap(t, f.base, 0x300, false)

	f.mgr.SetParent(a, b)
	f.mgr.SetParent(b, c)
	f.mgr.SetParent(c, a)

	if a.Parent() != nil {
		t.Fatal("cycle edge was added")
	}
	err := f.mgr.Errors().Fetch()
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseGraph, Kind: errors.KindGraphCycle}) {
		t.Fatalf("cycle error = %v", err)
	}
	if a.RefCount() != 1 {
		t.Fatalf("refused edge changed RefCount to %d", a.RefCount())
	}
}

func TestSetParent_Sequence(t *testing.T) {
	f := newFixture(t)
	p := f.wrap(t, f.base, 0x100, false)
	c1 := f.wrap(t, f.base, 0x200, false)
	c2 := f.wrap(t, f.base, 0x300, false)

	f.mgr.SetParent(p, []*Object{c1, c2})

	children := p.Children()
	if len(children) != 2 || children[0] != c1 || children[1] != c2 {
		t.Fatalf("Children() = %v, want [c1 c2] in order", children)
	}

	f.mgr.SetParent(nil, []any{c1, c2})
	if len(p.Children()) != 0 {
		t.Fatal("sequence detach left children behind")
	}
}

func TestInvalidate_Cascades(t *testing.T) {
	f := newFixture(t)
	a := f.wrap(t, f.base, 0x100, false)
	b := f.wrap(t, f.base, 0x200, false)
	c := f.wrap(t, f.base, 0x300, false)
	d := f.wrap(t, f.base, 0x400, false)

	f.mgr.SetParent(a, b)
	f.mgr.SetParent(b, c)
	f.mgr.SetParent(b, d)

	b.Invalidate()

	if !a.IsValid(false) {
		t.Fatal("ancestor must stay valid")
	}
	for _, o := range []*Object{b, c, d} {
		if o.IsValid(false) {
			t.Fatalf("%s should be invalid", o)
		}
		if _, ok := f.mgr.Retrieve(o.ptr); ok {
			t.Fatalf("%s should be unbound", o)
		}
	}
	if c.Ownership() != OwnershipNative {
		t.Fatal("Invalidate must not touch ownership")
	}
	if c.Parent() != b || len(b.Children()) != 2 {
		t.Fatal("Invalidate must not change the graph")
	}

	// Repeating is harmless
	b.Invalidate()
	a.Invalidate()
	if a.IsValid(false) {
		t.Fatal("a should be invalid")
	}

	b.MakeValid()
	if !b.IsValid(false) {
		t.Fatal("MakeValid should restore b")
	}
	if c.IsValid(false) {
		t.Fatal("MakeValid does not cascade")
	}
	if got, ok := f.mgr.Retrieve(0x200); !ok || got != b {
		t.Fatal("MakeValid should rebind the pointer")
	}
}

func TestDestroy_InvalidatesGrandchildren(t *testing.T) {
	f := newFixture(t)
	a := f.wrap(t, f.base, 0x100, true)
	b := f.wrap(t, f.base, 0x200, false)
	c := f.wrap(t, f.base, 0x300, false)

	f.mgr.SetParent(a, b)
	f.mgr.SetParent(b, c)

	f.mgr.Destroy(a)

	if a.IsValid(false) || b.IsValid(false) || c.IsValid(false) {
		t.Fatal("destroying a must invalidate b and c")
	}
	if len(f.destroyed) != 0 {
		t.Fatal("Destroy reacts to native destruction and must not run destructors")
	}
	if a.Ownership() != OwnershipNone {
		t.Fatalf("destroyed object ownership = %s", a.Ownership())
	}
	if ptr, ok := a.CppPointer(0); ok || !ptr.IsNull() {
		t.Fatal("destroyed object must not yield a pointer")
	}
}

func TestDealloc_CascadesThroughGraph(t *testing.T) {
	f := newFixture(t)
	a := f.wrap(t, f.base, 0x100, true)
	b := f.wrap(t, f.base, 0x200, true)
	c := f.wrap(t, f.base, 0x300, true)

	f.mgr.SetParent(a, b)
	f.mgr.SetParent(b, c)
	b.DecRef()
	c.DecRef()

	if b.Dealloced() || c.Dealloced() {
		t.Fatal("parents should keep children alive")
	}

	a.DecRef()

	for _, o := range []*Object{a, b, c} {
		if !o.Dealloced() {
			t.Fatalf("%s should be deallocated", o)
		}
	}
	// Only the container is destroyed from the host side; it destroys its
	// children natively.
	if len(f.destroyed) != 1 || f.destroyed[0] != 0x100 {
		t.Fatalf("destroyed = %v, want [0x100]", f.destroyed)
	}
	if f.mgr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", f.mgr.Len())
	}
}

func TestDestroyParentInfo_Once(t *testing.T) {
	f := newFixture(t)
	p := f.wrap(t, f.base, 0x100, false)
	c := f.wrap(t, f.base, 0x200, false)
	f.mgr.SetParent(p, c)

	f.mgr.destroyParentInfo(p, true)
	if c.RefCount() != 1 || c.Parent() != nil {
		t.Fatalf("child not released: refs=%d", c.RefCount())
	}
	if c.IsValid(false) {
		t.Fatal("child should be invalid")
	}

	f.mgr.destroyParentInfo(p, true)
	if c.RefCount() != 1 {
		t.Fatal("second call released the child again")
	}

	// A torn down container accepts no new children
	other := f.wrap(t, f.base, 0x300, false)
	f.mgr.SetParent(p, other)
	if other.Parent() != nil {
		t.Fatal("torn down parent accepted a child")
	}
}
