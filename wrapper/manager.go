package wrapper

import (
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/handle"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/typeext"
)

// Options configures a Manager.
type Options struct {
	// Logger defaults to the package logger.
	Logger *zap.Logger
	// Observer receives lifecycle events. Optional.
	Observer Observer
	// Errors defaults to the type registry's error channel.
	Errors *host.ErrorChannel
}

// DefaultOptions returns options using the package logger, no observer and
// the registry's error channel.
func DefaultOptions() Options {
	return Options{}
}

// Manager owns every wrapper created for one native heap and the mapping
// from live native pointers to wrappers.
//
// Manager is not safe for concurrent use. All operations on a Manager and
// its Objects must be serialized by the caller.
type Manager struct {
	types   *typeext.Registry
	objects *handle.Table[*Object]
	byPtr   map[objbridge.Ptr]handle.Handle
	errs    *host.ErrorChannel
	log     *zap.Logger
	obs     Observer

	teardownErr *multierror.Error
	closed      bool
}

// NewManager creates a manager resolving types through types.
func NewManager(types *typeext.Registry, opts Options) *Manager {
	m := &Manager{
		types:   types,
		objects: handle.NewTable[*Object](),
		byPtr:   make(map[objbridge.Ptr]handle.Handle),
		errs:    opts.Errors,
		log:     opts.Logger,
		obs:     opts.Observer,
	}
	if m.errs == nil {
		m.errs = types.Errors()
	}
	if m.log == nil {
		m.log = Logger()
	}
	return m
}

// NewManagerWithDefaults creates a manager with DefaultOptions.
func NewManagerWithDefaults(types *typeext.Registry) *Manager {
	return NewManager(types, DefaultOptions())
}

// Types returns the type registry.
func (m *Manager) Types() *typeext.Registry { return m.types }

// Errors returns the host error channel.
func (m *Manager) Errors() *host.ErrorChannel { return m.errs }

// Len returns the number of live wrappers.
func (m *Manager) Len() int { return m.objects.Len() }

// Objects returns a snapshot of live wrappers in creation slot order.
func (m *Manager) Objects() []*Object {
	var out []*Object
	m.objects.Each(func(_ handle.Handle, o *Object) bool {
		out = append(out, o)
		return true
	})
	return out
}

// Roots returns the live wrappers that have no parent.
func (m *Manager) Roots() []*Object {
	var out []*Object
	for _, o := range m.Objects() {
		if !o.parent.Valid() {
			out = append(out, o)
		}
	}
	return out
}

// Lookup returns the wrapper in slot h.
func (m *Manager) Lookup(h handle.Handle) (*Object, bool) {
	return m.objects.Get(h)
}

// Retrieve returns the valid wrapper bound to ptr, if any.
func (m *Manager) Retrieve(ptr objbridge.Ptr) (*Object, bool) {
	h, ok := m.byPtr[ptr]
	if !ok {
		return nil, false
	}
	return m.objects.Get(h)
}

// NewObject wraps cptr. The dynamic type is resolved in order: instanceType
// itself when isExactType is set, then the result of instanceType's type
// discovery function, then typeName looked up in the registry, then
// instanceType. Discovered or hinted types are only used when they derive
// from instanceType.
//
// The returned object carries one reference owned by the caller.
func (m *Manager) NewObject(instanceType typeext.TypeID, cptr objbridge.Ptr, hasOwnership, isExactType bool, typeName string) (*Object, error) {
	if !m.types.CheckType(instanceType) {
		return nil, errors.NotFound(errors.PhaseBind, "type", m.types.Name(instanceType))
	}
	if hasOwnership && cptr.IsNull() {
		return nil, errors.InvalidInput(errors.PhaseBind, "cannot take ownership of a null pointer")
	}

	typ := instanceType
	if !isExactType {
		typ = m.resolveType(instanceType, cptr, typeName)
	}

	o := &Object{
		mgr:      m,
		typ:      typ,
		ptr:      cptr,
		valid:    true,
		refCount: 1,
	}
	switch {
	case cptr.IsNull():
		o.ownership = OwnershipNone
	case hasOwnership:
		o.ownership = OwnershipWrapper
	default:
		o.ownership = OwnershipNative
	}

	h, err := m.objects.Create(o)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBind, errors.KindInvalidInput, err, "manager closed")
	}
	o.h = h
	m.bind(o)

	m.log.Debug("bound wrapper",
		zap.Stringer("object", o),
		zap.Uint32("handle", uint32(h)),
		zap.Stringer("ownership", o.ownership))
	m.emit(EventBound, o)
	return o, nil
}

func (m *Manager) resolveType(declared typeext.TypeID, cptr objbridge.Ptr, typeName string) typeext.TypeID {
	if discover := m.types.TypeDiscoveryFunction(declared); discover != nil && !cptr.IsNull() {
		found := discover(cptr, declared)
		if found != typeext.Invalid && m.types.IsSubtype(found, declared) {
			return found
		}
		if found != typeext.Invalid {
			m.log.Debug("ignoring discovered type",
				zap.String("declared", m.types.Name(declared)),
				zap.String("discovered", m.types.Name(found)))
		}
	}
	if typeName != "" {
		if id, ok := m.types.Lookup(typeName); ok && m.types.IsSubtype(id, declared) {
			return id
		}
	}
	return declared
}

// NativeConstructor builds a native object and returns its address.
type NativeConstructor func() (objbridge.Ptr, error)

// Construct runs ctor on behalf of a host-side instantiation of myType
// using ctorType's constructor. The result is owned by the wrapper. User
// types get a native shim.
func (m *Manager) Construct(myType, ctorType typeext.TypeID, ctor NativeConstructor) (*Object, error) {
	if !m.types.CanCallConstructor(myType, ctorType) {
		return nil, m.errs.Err()
	}
	ptr, err := ctor()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConstruct, errors.KindAllocation, err, "native constructor failed")
	}
	if ptr.IsNull() {
		return nil, errors.NilPointer(errors.PhaseConstruct, nil, m.types.Name(ctorType))
	}

	o, err := m.NewObject(myType, ptr, true, true, "")
	if err != nil {
		return nil, err
	}
	o.hasCppWrapper = m.types.IsUserType(myType)
	return o, nil
}

func (m *Manager) bind(o *Object) {
	if o.ptr.IsNull() {
		return
	}
	if prev, ok := m.byPtr[o.ptr]; ok && prev != o.h {
		if old, live := m.objects.Get(prev); live {
			m.log.Warn("native pointer already wrapped, replacing mapping",
				zap.Stringer("previous", old),
				zap.Stringer("object", o))
		}
	}
	m.byPtr[o.ptr] = o.h
}

func (m *Manager) unbind(o *Object) {
	if h, ok := m.byPtr[o.ptr]; ok && h == o.h {
		delete(m.byPtr, o.ptr)
	}
}

func (m *Manager) emit(ev Event, o *Object) {
	if m.obs != nil {
		m.obs.Observe(ev, o)
	}
}
