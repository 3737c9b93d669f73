package wrapper

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/handle"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/typeext"
)

// Object is the host-side stand-in for one native object.
//
// Objects are reference counted through IncRef/DecRef. The count reaching
// zero is the host collector sweeping the wrapper: the Manager then runs the
// full teardown sequence. Objects are not safe for concurrent use.
type Object struct {
	mgr *Manager
	h   handle.Handle
	typ typeext.TypeID
	ptr objbridge.Ptr

	valid         bool
	ownership     Ownership
	hasCppWrapper bool

	// parent is a non-owning back-edge; the parent's children list owns
	// one reference on this object while the edge exists.
	parent   handle.Handle
	children []handle.Handle

	// extraRef is a reference the object holds on itself until the native
	// side destroys it.
	extraRef bool

	refs     map[string][]host.Object
	userData map[any]userDataEntry

	refCount            int32
	parentInfoDestroyed bool
	dealloced           bool
}

type userDataEntry struct {
	value   any
	destroy func(any)
}

var _ host.Object = (*Object)(nil)

// Handle returns the object's slot in its Manager.
func (o *Object) Handle() handle.Handle { return o.h }

// Type returns the dynamic type the object was created with.
func (o *Object) Type() typeext.TypeID { return o.typ }

// TypeName returns the declared name of the object's dynamic type.
func (o *Object) TypeName() string { return o.mgr.types.Name(o.typ) }

// Pointer returns the bound native pointer without any validity check.
func (o *Object) Pointer() objbridge.Ptr { return o.ptr }

// Manager returns the manager the object belongs to.
func (o *Object) Manager() *Manager { return o.mgr }

// RefCount returns the current host reference count.
func (o *Object) RefCount() int32 { return o.refCount }

// Dealloced reports whether the object has been swept.
func (o *Object) Dealloced() bool { return o.dealloced }

func (o *Object) String() string {
	return fmt.Sprintf("%s@%#x", o.TypeName(), uint32(o.ptr))
}

// IncRef adds a host reference.
func (o *Object) IncRef() {
	if o.dealloced {
		return
	}
	o.refCount++
}

// DecRef drops a host reference. Dropping the last one deallocates the
// wrapper.
func (o *Object) DecRef() {
	if o.dealloced {
		return
	}
	if o.refCount <= 0 {
		o.mgr.log.Warn("reference count underflow",
			zap.Stringer("object", o),
			zap.Uint32("handle", uint32(o.h)))
		return
	}
	o.refCount--
	if o.refCount == 0 {
		o.mgr.dealloc(o)
	}
}

// IsValid reports whether the native object may be accessed. When it may
// not and signal is true, an InvalidAccess error is set on the host error
// channel. A nil Object is never valid.
func (o *Object) IsValid(signal bool) bool {
	if o == nil {
		return false
	}
	if o.valid {
		return true
	}
	if signal {
		o.mgr.errs.Set(errors.InvalidAccess(o.TypeName()))
	}
	return false
}

// IsValid is the generic-handle form of (*Object).IsValid. Values that are
// not wrappers, including nil, are always valid.
func IsValid(v any, signal bool) bool {
	if o, ok := v.(*Object); ok {
		return o.IsValid(signal)
	}
	return true
}

// SetValidCpp sets validity directly, for native objects whose lifetime is
// known independently. It does not cascade.
func (o *Object) SetValidCpp(valid bool) {
	if valid {
		o.MakeValid()
		return
	}
	if o.valid && !o.dealloced {
		o.valid = false
		o.mgr.unbind(o)
		o.mgr.emit(EventInvalidated, o)
	}
}

// Ownership returns the current ownership state.
func (o *Object) Ownership() Ownership { return o.ownership }

// HasOwnership reports whether the wrapper destroys the native object.
func (o *Object) HasOwnership() bool { return o.ownership == OwnershipWrapper }

// GetOwnership makes the wrapper responsible for destroying the native
// object. A self reference taken by ReleaseOwnership is dropped. An object
// with a parent stays owned by its container.
func (o *Object) GetOwnership() {
	if o.dealloced {
		return
	}
	if p := o.Parent(); p != nil {
		o.mgr.log.Debug("ignoring ownership request on a child",
			zap.Stringer("object", o),
			zap.Stringer("parent", p))
		return
	}
	o.setOwnership(OwnershipWrapper)
	if o.extraRef {
		o.extraRef = false
		o.DecRef()
	}
}

// ReleaseOwnership hands destruction back to the native side. A wrapper
// with a native shim keeps itself alive until the native side destroys it.
func (o *Object) ReleaseOwnership() {
	if o.dealloced || o.ownership != OwnershipWrapper {
		return
	}
	o.setOwnership(OwnershipNative)
	if o.hasCppWrapper && !o.extraRef {
		o.extraRef = true
		o.IncRef()
	}
}

func (o *Object) setOwnership(own Ownership) {
	if o.ptr.IsNull() && own != OwnershipNone {
		o.mgr.log.Debug("ignoring ownership change on null pointer",
			zap.Stringer("object", o),
			zap.Stringer("ownership", own))
		own = OwnershipNone
	}
	if o.ownership == own {
		return
	}
	o.ownership = own
	o.mgr.emit(EventOwnershipChanged, o)
}

// SetHasCppWrapper records whether a native shim subclass intercepts
// virtual dispatch for this object.
func (o *Object) SetHasCppWrapper(v bool) { o.hasCppWrapper = v }

// HasCppWrapper reports whether a native shim is attached.
func (o *Object) HasCppWrapper() bool { return o.hasCppWrapper }

// CppPointer returns the native pointer adjusted to the desired type.
// Invalid desired means the object's own type. When the object is invalid
// it reports InvalidAccess on the error channel and returns false.
func (o *Object) CppPointer(desired typeext.TypeID) (objbridge.Ptr, bool) {
	if !o.IsValid(true) {
		return objbridge.Null, false
	}
	if o.ptr.IsNull() || desired == typeext.Invalid || desired == o.typ {
		return o.ptr, true
	}

	types := o.mgr.types
	for _, b := range types.BaseOffsets(o.typ, o.ptr) {
		if b.Base == desired {
			return o.ptr.Add(b.Offset), true
		}
	}
	if types.HasCast(o.typ) {
		return types.Cast(o.typ, o.ptr, desired), true
	}
	if types.IsSubtype(o.typ, desired) {
		return o.ptr, true
	}

	o.mgr.errs.Set(errors.TypeMismatch(errors.PhaseAccess, nil,
		fmt.Sprintf("%T", o), types.Name(desired)))
	return objbridge.Null, false
}

// SetCppPointer binds ptr, given as a pointer to the desired sub-object,
// to an object that has no native pointer yet. It returns false when a
// pointer is already bound.
func (o *Object) SetCppPointer(desired typeext.TypeID, ptr objbridge.Ptr) bool {
	if !o.ptr.IsNull() {
		o.mgr.errs.Set(errors.AlreadySet(errors.PhaseBind, o.TypeName(), "native pointer"))
		return false
	}
	if ptr.IsNull() {
		return true
	}
	if desired != typeext.Invalid && desired != o.typ {
		for _, b := range o.mgr.types.BaseOffsets(o.typ, ptr) {
			if b.Base == desired {
				ptr -= objbridge.Ptr(b.Offset)
				break
			}
		}
	}
	o.ptr = ptr
	o.valid = true
	o.mgr.bind(o)
	return true
}

// SetUserData attaches value under key. A previous value under the same key
// is destroyed first. destroy runs exactly once, at the latest when the
// wrapper is deallocated.
func (o *Object) SetUserData(key, value any, destroy func(any)) {
	if o.userData == nil {
		o.userData = make(map[any]userDataEntry)
	}
	if prev, ok := o.userData[key]; ok && prev.destroy != nil {
		prev.destroy(prev.value)
	}
	o.userData[key] = userDataEntry{value: value, destroy: destroy}
}

// UserData returns the value stored under key.
func (o *Object) UserData(key any) (any, bool) {
	e, ok := o.userData[key]
	return e.value, ok
}

func (o *Object) releaseUserData() {
	data := o.userData
	o.userData = nil
	for _, e := range data {
		if e.destroy != nil {
			e.destroy(e.value)
		}
	}
}

// GetOwnershipOf applies GetOwnership to v, which is a *Object or a
// collection of them ([]*Object, []any, iter.Seq[*Object]).
func GetOwnershipOf(v any) {
	each(v, (*Object).GetOwnership)
}

// ReleaseOwnershipOf applies ReleaseOwnership to v or its elements.
func ReleaseOwnershipOf(v any) {
	each(v, (*Object).ReleaseOwnership)
}

// InvalidateAll applies Invalidate to v or its elements.
func InvalidateAll(v any) {
	each(v, (*Object).Invalidate)
}

func each(v any, fn func(*Object)) {
	switch x := v.(type) {
	case *Object:
		if x != nil {
			fn(x)
		}
	case []*Object:
		for _, o := range x {
			if o != nil {
				fn(o)
			}
		}
	case []any:
		for _, e := range x {
			each(e, fn)
		}
	case iter.Seq[*Object]:
		for o := range x {
			if o != nil {
				fn(o)
			}
		}
	}
}
