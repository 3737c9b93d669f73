package wrapper

import (
	"go.uber.org/zap"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/handle"
)

// SetParent makes parent the owner of child. A nil parent detaches child.
// child may also be a collection of wrappers, in which case every element
// is attached. Values that are not wrappers are ignored.
//
// The previous edge of child, if any, is removed first. The parent holds a
// reference on child and the native side takes ownership of it. An edge
// that would close a cycle is refused with a graph cycle error on the error
// channel.
func (m *Manager) SetParent(parent, child any) {
	if child == nil {
		return
	}
	if parent == nil {
		each(child, (*Object).Detach)
		return
	}
	p, ok := parent.(*Object)
	if !ok {
		return
	}
	if p == nil {
		each(child, (*Object).Detach)
		return
	}
	each(child, func(c *Object) { m.setParent(p, c) })
}

func (m *Manager) setParent(p, c *Object) {
	if p == c || c.parent == p.h {
		return
	}
	if p.mgr != m || c.mgr != m {
		m.errs.Set(errors.InvalidInput(errors.PhaseGraph, "objects belong to different managers"))
		return
	}
	if p.dealloced || p.parentInfoDestroyed || c.dealloced || c.parentInfoDestroyed {
		m.errs.Set(errors.InvalidInput(errors.PhaseGraph, "object already torn down"))
		return
	}
	if m.isAncestor(c, p) {
		m.errs.Set(errors.GraphCycle(p.String(), c.String()))
		return
	}

	if old := c.Parent(); old != nil {
		// The edge moves; the reference it holds moves with it.
		old.removeChild(c.h)
	} else {
		c.IncRef()
	}
	c.parent = p.h
	p.children = append(p.children, c.h)
	c.setOwnership(OwnershipNative)

	m.log.Debug("set parent",
		zap.Stringer("parent", p),
		zap.Stringer("child", c))
	m.emit(EventParentChanged, c)
}

// isAncestor reports whether a is o or one of o's ancestors.
func (m *Manager) isAncestor(a, o *Object) bool {
	for cur := o; cur != nil; cur = cur.Parent() {
		if cur == a {
			return true
		}
	}
	return false
}

// RemoveParent detaches the object from its parent. With giveOwnershipBack
// the native side owns the object afterwards, otherwise the wrapper does.
// With keepReference the reference held by the edge is not dropped; the
// object keeps it until the native side destroys it. That only applies
// when something native will call Destroy: the native side owns the
// object, or a native shim wraps it. A wrapper-owned object without a shim
// drops the reference so the host can still sweep it.
func (o *Object) RemoveParent(giveOwnershipBack, keepReference bool) {
	p := o.Parent()
	if p == nil {
		return
	}
	p.removeChild(o.h)
	o.parent = handle.Invalid

	if giveOwnershipBack {
		o.setOwnership(OwnershipNative)
	} else {
		o.setOwnership(OwnershipWrapper)
	}
	o.mgr.log.Debug("removed parent",
		zap.Stringer("parent", p),
		zap.Stringer("child", o))
	o.mgr.emit(EventParentChanged, o)

	if keepReference && !o.extraRef && (giveOwnershipBack || o.hasCppWrapper) {
		o.extraRef = true
		return
	}
	o.DecRef()
}

// Detach removes the parent edge, returning ownership to the native side.
func (o *Object) Detach() {
	o.RemoveParent(true, false)
}

// Parent returns the parent wrapper, or nil for a root.
func (o *Object) Parent() *Object {
	if !o.parent.Valid() {
		return nil
	}
	p, _ := o.mgr.objects.Get(o.parent)
	return p
}

// Children returns the live children in attachment order.
func (o *Object) Children() []*Object {
	out := make([]*Object, 0, len(o.children))
	for _, h := range o.children {
		if c, ok := o.mgr.objects.Get(h); ok {
			out = append(out, c)
		}
	}
	return out
}

// HasParentInfo reports whether the object takes part in the graph.
func (o *Object) HasParentInfo() bool {
	return o.parent.Valid() || len(o.children) > 0
}

func (o *Object) removeChild(h handle.Handle) {
	for i, ch := range o.children {
		if ch == h {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// Invalidate marks the object and every descendant invalid. Invalid
// wrappers are unbound from their native pointers. Ownership is untouched.
func (o *Object) Invalidate() {
	if o.valid {
		o.valid = false
		o.mgr.unbind(o)
		o.mgr.log.Debug("invalidated", zap.Stringer("object", o))
		o.mgr.emit(EventInvalidated, o)
	}
	for _, c := range o.Children() {
		c.Invalidate()
	}
}

// MakeValid marks the object valid again and rebinds its pointer. A swept
// wrapper stays invalid.
func (o *Object) MakeValid() {
	if o.valid || o.dealloced {
		return
	}
	o.valid = true
	o.mgr.bind(o)
}

// destroyParentInfo runs once per object during teardown. It invalidates
// every descendant, drops the references held on the direct children and,
// with removeFromParent, removes the object's own edge.
func (m *Manager) destroyParentInfo(o *Object, removeFromParent bool) {
	if o.parentInfoDestroyed {
		return
	}
	o.parentInfoDestroyed = true

	for len(o.children) > 0 {
		h := o.children[0]
		if c, ok := m.objects.Get(h); ok && c.parent == o.h {
			c.Invalidate()
			c.RemoveParent(true, false)
		}
		if len(o.children) > 0 && o.children[0] == h {
			o.children = o.children[1:]
		}
	}
	o.children = nil

	if removeFromParent {
		o.RemoveParent(true, false)
	}
}
