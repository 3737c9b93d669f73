package wrapper

import (
	"cmp"
	"slices"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
)

// dealloc is the sweep of a wrapper by the host collector.
func (m *Manager) dealloc(o *Object) {
	if o.dealloced {
		return
	}
	o.dealloced = true
	o.refCount = 0

	owned := o.ownership == OwnershipWrapper
	m.destroyParentInfo(o, true)
	if owned && o.valid && !o.ptr.IsNull() {
		if err := m.callDestructor(o); err != nil {
			m.recordTeardownError(o, err)
		}
	}

	m.unbind(o)
	o.valid = false
	o.extraRef = false
	o.clearReferences()
	o.releaseUserData()
	m.objects.Remove(o.h)

	m.log.Debug("deallocated wrapper",
		zap.Stringer("object", o),
		zap.Uint32("handle", uint32(o.h)))
	m.emit(EventDeallocated, o)
}

func (m *Manager) callDestructor(o *Object) error {
	dtor := m.types.DestructorFunction(o.typ)
	if dtor == nil {
		m.log.Debug("no native destructor", zap.Stringer("object", o))
		return nil
	}
	err := dtor(o.ptr)
	m.emit(EventDestructorCalled, o)
	if err != nil {
		return errors.Wrap(errors.PhaseTeardown, errors.KindDestructor, err, "native destructor of "+o.String())
	}
	return nil
}

func (m *Manager) recordTeardownError(o *Object, err error) {
	m.log.Warn("native destructor failed", zap.Stringer("object", o), zap.Error(err))
	m.teardownErr = multierror.Append(m.teardownErr, err)
}

// Destroy reacts to the native side destroying the object behind o. Kept
// references are released, descendants are invalidated, o leaves its
// parent and its pointer is unbound and cleared. The wrapper itself lives
// on until its last host reference is dropped.
func (m *Manager) Destroy(o *Object) {
	if o == nil || o.dealloced {
		return
	}
	// Hold o while its edges are torn down.
	o.IncRef()

	o.clearReferences()
	m.destroyParentInfo(o, true)

	if o.valid || !o.ptr.IsNull() {
		m.unbind(o)
		wasValid := o.valid
		o.valid = false
		o.ptr = objbridge.Null
		o.setOwnership(OwnershipNone)
		if wasValid {
			m.emit(EventInvalidated, o)
		}
	}
	m.log.Debug("native object destroyed", zap.Stringer("object", o))

	if o.extraRef {
		o.extraRef = false
		o.DecRef()
	}
	o.DecRef()
}

// Delete destroys the native object from the host side: the type's
// destructor runs on the pointer whatever the ownership, then Destroy
// follows. Deleting an invalid object reports InvalidAccess.
func (m *Manager) Delete(o *Object) error {
	if o == nil || o.dealloced {
		return errors.InvalidInput(errors.PhaseTeardown, "object already deallocated")
	}
	if !o.IsValid(true) {
		return m.errs.Err()
	}
	var err error
	if !o.ptr.IsNull() {
		err = m.callDestructor(o)
	}
	m.Destroy(o)
	return err
}

// Close deallocates every live wrapper, roots first, and reports the
// destructor failures seen since the manager was created. Close is
// idempotent; NewObject fails afterwards.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	live := m.Objects()
	slices.SortStableFunc(live, func(a, b *Object) int {
		return cmp.Compare(depth(a), depth(b))
	})
	for _, o := range live {
		if !o.dealloced {
			m.dealloc(o)
		}
	}
	_ = m.objects.Close()
	clear(m.byPtr)

	err := m.teardownErr.ErrorOrNil()
	m.teardownErr = nil
	return err
}

func depth(o *Object) int {
	d := 0
	for p := o.parent; p.Valid(); d++ {
		po, ok := o.mgr.objects.Get(p)
		if !ok {
			break
		}
		p = po.parent
	}
	return d
}
