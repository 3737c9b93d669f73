package typeext

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/typeext/internal/arena"
)

// Descriptor is the static shape of a dynamic type.
type Descriptor struct {
	Name      string
	Bases     []TypeID
	User      bool // declared by the host, not by generated glue
	Finalized bool
}

type entry struct {
	desc Descriptor
	ext  Extension
}

// Registry owns every dynamic type and its Extension. Types live in an
// arena and are addressed by TypeID; each has exactly one Extension.
//
// Registry is not safe for concurrent use.
type Registry struct {
	types  *arena.Arena[entry]
	byName map[string]TypeID
	errs   *host.ErrorChannel
	closed bool
}

// NewRegistry creates an empty registry reporting to errs.
// A nil errs gets a fresh channel.
func NewRegistry(errs *host.ErrorChannel) *Registry {
	if errs == nil {
		errs = host.NewErrorChannel()
	}
	return &Registry{
		types:  arena.New[entry](),
		byName: make(map[string]TypeID),
		errs:   errs,
	}
}

// Errors returns the channel CanCallConstructor reports to.
func (r *Registry) Errors() *host.ErrorChannel {
	return r.errs
}

// Declare registers a generated type with the given direct bases.
func (r *Registry) Declare(name string, bases ...TypeID) (TypeID, error) {
	return r.declare(Descriptor{Name: name, Bases: bases}, nil)
}

func (r *Registry) declare(desc Descriptor, parent *Extension) (TypeID, error) {
	if desc.Name == "" {
		return Invalid, errors.InvalidInput(errors.PhaseRegister, "type name is empty")
	}
	if _, exists := r.byName[desc.Name]; exists {
		return Invalid, errors.Registration(desc.Name, fmt.Errorf("type %q already declared", desc.Name))
	}
	for _, b := range desc.Bases {
		if _, err := r.get(b); err != nil {
			return Invalid, errors.Registration(desc.Name, err)
		}
	}

	e := entry{desc: desc}
	if parent != nil {
		e.ext.inheritFrom(parent)
	}
	id := TypeID(r.types.Alloc(e))
	r.byName[desc.Name] = id

	Logger().Debug("declared type",
		zap.String("name", desc.Name),
		zap.Uint32("id", uint32(id)),
		zap.Bool("user", desc.User))
	return id, nil
}

// DeclareSubType declares a user-defined subtype of parent. The subtype
// inherits parent's extension and the inherited sub-type-init hook is
// invoked with the new type and args.
func (r *Registry) DeclareSubType(parent TypeID, name string, args ...any) (TypeID, error) {
	p, err := r.get(parent)
	if err != nil {
		return Invalid, errors.Registration(name, err)
	}
	id, err := r.declare(Descriptor{
		Name:      name,
		Bases:     []TypeID{parent},
		User:      true,
		Finalized: true,
	}, &p.ext)
	if err != nil {
		return Invalid, err
	}

	if hook := p.ext.SubTypeInit; hook != nil {
		hook(id, args)
	}
	return id, nil
}

// Lookup finds a type by its declared name.
func (r *Registry) Lookup(name string) (TypeID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Descriptor returns the descriptor of id.
func (r *Registry) Descriptor(id TypeID) (Descriptor, bool) {
	e, err := r.get(id)
	if err != nil {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Name returns the declared name of id, or a placeholder for unknown types.
func (r *Registry) Name(id TypeID) string {
	e, err := r.get(id)
	if err != nil {
		return fmt.Sprintf("<type %d>", id)
	}
	return e.desc.Name
}

// Len returns the number of declared types.
func (r *Registry) Len() int {
	return r.types.Len()
}

// Finalize freezes the extension of id.
func (r *Registry) Finalize(id TypeID) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	e.desc.Finalized = true
	return nil
}

// CheckType reports whether id is a type known to this registry.
func (r *Registry) CheckType(id TypeID) bool {
	_, err := r.get(id)
	return err == nil
}

// IsUserType reports whether id was declared through DeclareSubType.
func (r *Registry) IsUserType(id TypeID) bool {
	e, err := r.get(id)
	return err == nil && e.desc.User
}

// IsSubtype reports whether derived is base or inherits from it.
func (r *Registry) IsSubtype(derived, base TypeID) bool {
	if derived == base {
		return r.CheckType(derived)
	}
	e, err := r.get(derived)
	if err != nil {
		return false
	}
	for _, b := range e.desc.Bases {
		if r.IsSubtype(b, base) {
			return true
		}
	}
	return false
}

// CanCallConstructor reports whether ctorType's constructor may build an
// instance whose most derived type is myType. On false an error is set on
// the registry's error channel.
func (r *Registry) CanCallConstructor(myType, ctorType TypeID) bool {
	if r.IsSubtype(myType, ctorType) {
		return true
	}
	r.errs.Set(errors.ConstructionNotPermitted(r.Name(myType), r.Name(ctorType)))
	return false
}

// Extension returns a copy of the extension of id.
func (r *Registry) Extension(id TypeID) (Extension, bool) {
	e, err := r.get(id)
	if err != nil {
		return Extension{}, false
	}
	return e.ext, true
}

func (r *Registry) get(id TypeID) (*entry, error) {
	e, err := r.types.Get(arena.ID(id))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRegister, errors.KindNotFound, err, "lookup type")
	}
	return e, nil
}

// mutable returns the entry of id if its extension may still change.
func (r *Registry) mutable(id TypeID, what string) (*entry, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if e.desc.Finalized {
		return nil, errors.Finalized(e.desc.Name, what)
	}
	return e, nil
}

// SetOriginalName records the native name of id.
func (r *Registry) SetOriginalName(id TypeID, name string) error {
	e, err := r.mutable(id, "original name")
	if err != nil {
		return err
	}
	e.ext.OriginalName = name
	return nil
}

// OriginalName returns the native name of id, empty if unset.
func (r *Registry) OriginalName(id TypeID) string {
	e, err := r.get(id)
	if err != nil {
		return ""
	}
	return e.ext.OriginalName
}

// SetTypeDiscoveryFunction sets the discovery callback of id.
func (r *Registry) SetTypeDiscoveryFunction(id TypeID, fn TypeDiscoveryFunc) error {
	e, err := r.mutable(id, "type discovery function")
	if err != nil {
		return err
	}
	e.ext.TypeDiscovery = fn
	return nil
}

// TypeDiscoveryFunction returns the discovery callback of id, if any.
func (r *Registry) TypeDiscoveryFunction(id TypeID) TypeDiscoveryFunc {
	e, err := r.get(id)
	if err != nil {
		return nil
	}
	return e.ext.TypeDiscovery
}

// SetCastFunction sets the special cast function of id.
func (r *Registry) SetCastFunction(id TypeID, fn SpecialCastFunc) error {
	e, err := r.mutable(id, "cast function")
	if err != nil {
		return err
	}
	e.ext.SpecialCast = fn
	return nil
}

// HasCast reports whether id has a special cast function.
func (r *Registry) HasCast(id TypeID) bool {
	e, err := r.get(id)
	return err == nil && e.ext.SpecialCast != nil
}

// Cast adjusts ptr, a pointer to an object of type self, so that it points
// at the target sub-object. Without a special cast function ptr is
// returned unchanged.
func (r *Registry) Cast(self TypeID, ptr objbridge.Ptr, target TypeID) objbridge.Ptr {
	e, err := r.get(self)
	if err != nil || e.ext.SpecialCast == nil {
		return ptr
	}
	return e.ext.SpecialCast(ptr, target)
}

// SetMultipleInheritanceFunction sets the base offset initializer of id.
func (r *Registry) SetMultipleInheritanceFunction(id TypeID, fn MultipleInheritanceInitFunc) error {
	e, err := r.mutable(id, "multiple inheritance function")
	if err != nil {
		return err
	}
	e.ext.MultipleInheritanceInit = fn
	e.ext.miOffsets = nil
	e.ext.miComputed = false
	return nil
}

// MultipleInheritanceFunction returns the base offset initializer of id.
func (r *Registry) MultipleInheritanceFunction(id TypeID) MultipleInheritanceInitFunc {
	e, err := r.get(id)
	if err != nil {
		return nil
	}
	return e.ext.MultipleInheritanceInit
}

// BaseOffsets returns the base offsets of id. The initializer runs once,
// against the first object asked about; later calls reuse the result.
func (r *Registry) BaseOffsets(id TypeID, ptr objbridge.Ptr) []BaseOffset {
	e, err := r.get(id)
	if err != nil {
		return nil
	}
	if !e.ext.miComputed && e.ext.MultipleInheritanceInit != nil && !ptr.IsNull() {
		e.ext.miOffsets = e.ext.MultipleInheritanceInit(ptr)
		e.ext.miComputed = true
	}
	return e.ext.miOffsets
}

// CopyMultipleInheritance gives self the inheritance shape of other: the
// initializer, any computed offsets and the special cast.
func (r *Registry) CopyMultipleInheritance(self, other TypeID) error {
	src, err := r.get(other)
	if err != nil {
		return err
	}
	dst, err := r.mutable(self, "multiple inheritance function")
	if err != nil {
		return err
	}
	dst.ext.MultipleInheritanceInit = src.ext.MultipleInheritanceInit
	dst.ext.miOffsets = src.ext.miOffsets
	dst.ext.miComputed = src.ext.miComputed
	dst.ext.SpecialCast = src.ext.SpecialCast
	return nil
}

// SetDestructorFunction sets the native destructor of id.
func (r *Registry) SetDestructorFunction(id TypeID, fn ObjectDestructor) error {
	e, err := r.mutable(id, "destructor function")
	if err != nil {
		return err
	}
	e.ext.Destructor = fn
	return nil
}

// DestructorFunction returns the native destructor of id.
func (r *Registry) DestructorFunction(id TypeID) ObjectDestructor {
	e, err := r.get(id)
	if err != nil {
		return nil
	}
	return e.ext.Destructor
}

// SetSubTypeInitHook sets the hook run for user subtypes of id.
func (r *Registry) SetSubTypeInitHook(id TypeID, fn SubTypeInitHook) error {
	e, err := r.mutable(id, "sub-type init hook")
	if err != nil {
		return err
	}
	e.ext.SubTypeInit = fn
	return nil
}

// SetExternalCppConversionFunction sets the foreign value converter of id.
func (r *Registry) SetExternalCppConversionFunction(id TypeID, fn ExternalToCppFunc) error {
	e, err := r.mutable(id, "external conversion function")
	if err != nil {
		return err
	}
	e.ext.ExternalToCpp = fn
	return nil
}

// SetExternalIsConvertibleFunction sets the foreign value check of id.
func (r *Registry) SetExternalIsConvertibleFunction(id TypeID, fn ExternalIsConvertibleFunc) error {
	e, err := r.mutable(id, "external convertible function")
	if err != nil {
		return err
	}
	e.ext.ExternalIsConvertible = fn
	return nil
}

// HasExternalCppConversions reports whether id converts foreign values.
func (r *Registry) HasExternalCppConversions(id TypeID) bool {
	e, err := r.get(id)
	return err == nil && e.ext.ExternalToCpp != nil
}

// IsExternalConvertible reports whether v can be converted to id.
func (r *Registry) IsExternalConvertible(id TypeID, v any) bool {
	e, err := r.get(id)
	if err != nil || e.ext.ExternalIsConvertible == nil {
		return false
	}
	return e.ext.ExternalIsConvertible(v)
}

// CallExternalCppConversion converts v to a native pointer of type id.
func (r *Registry) CallExternalCppConversion(id TypeID, v any) (objbridge.Ptr, error) {
	e, err := r.get(id)
	if err != nil {
		return objbridge.Null, err
	}
	if e.ext.ExternalToCpp == nil {
		return objbridge.Null, errors.NotFound(errors.PhaseBind, "external conversion for", e.desc.Name)
	}
	return e.ext.ExternalToCpp(v)
}

// SetTypeUserData attaches data to id. It may be set once, even after
// finalization; del runs when the registry is closed.
func (r *Registry) SetTypeUserData(id TypeID, data any, del DeleteUserDataFunc) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	if e.ext.userDataSet {
		return errors.AlreadySet(errors.PhaseRegister, e.desc.Name, "type user data")
	}
	e.ext.userData = data
	e.ext.userDataDel = del
	e.ext.userDataSet = true
	return nil
}

// TypeUserData returns the data attached to id.
func (r *Registry) TypeUserData(id TypeID) any {
	e, err := r.get(id)
	if err != nil {
		return nil
	}
	return e.ext.userData
}

// Bind installs every capability glue implements on id.
func (r *Registry) Bind(id TypeID, glue any) error {
	e, err := r.mutable(id, "glue")
	if err != nil {
		return err
	}

	bound := 0
	if g, ok := glue.(TypeDiscoverer); ok {
		e.ext.TypeDiscovery = g.DiscoverType
		bound++
	}
	if g, ok := glue.(SpecialCaster); ok {
		e.ext.SpecialCast = g.SpecialCast
		bound++
	}
	if g, ok := glue.(MultipleInheritanceInitializer); ok {
		e.ext.MultipleInheritanceInit = g.BaseOffsets
		e.ext.miOffsets = nil
		e.ext.miComputed = false
		bound++
	}
	if g, ok := glue.(Destroyer); ok {
		e.ext.Destructor = g.DestroyNative
		bound++
	}
	if g, ok := glue.(SubTypeIniter); ok {
		e.ext.SubTypeInit = g.InitSubType
		bound++
	}
	if g, ok := glue.(ExternalConverter); ok {
		e.ext.ExternalToCpp = g.ToNative
		e.ext.ExternalIsConvertible = g.IsConvertible
		bound++
	}

	if bound == 0 {
		return errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			NativeType(e.desc.Name).
			GoType(fmt.Sprintf("%T", glue)).
			Detail("glue implements no type capability").
			Build()
	}
	return nil
}

// Close releases type user data. It is safe to call more than once.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.types.Each(func(_ arena.ID, e *entry) {
		if e.ext.userDataDel != nil {
			e.ext.userDataDel(e.ext.userData)
		}
		e.ext.userData = nil
		e.ext.userDataDel = nil
	})
}
