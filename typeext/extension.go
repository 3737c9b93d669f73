package typeext

import (
	"github.com/wippyai/objbridge"
)

// TypeID identifies a dynamic type in a Registry. The zero value is invalid.
type TypeID uint32

// Invalid is the zero TypeID.
const Invalid TypeID = 0

// BaseOffset locates a base sub-object inside a native object with
// multiple inheritance.
type BaseOffset struct {
	Base   TypeID
	Offset uint32
}

// TypeDiscoveryFunc inspects the native object at ptr and returns its most
// derived registered type, or Invalid when it cannot tell.
type TypeDiscoveryFunc func(ptr objbridge.Ptr, declared TypeID) TypeID

// SpecialCastFunc adjusts ptr so it points at the target type's sub-object.
type SpecialCastFunc func(ptr objbridge.Ptr, target TypeID) objbridge.Ptr

// MultipleInheritanceInitFunc returns the base offsets of the object at ptr.
type MultipleInheritanceInitFunc func(ptr objbridge.Ptr) []BaseOffset

// ObjectDestructor destroys the native object at ptr.
type ObjectDestructor func(ptr objbridge.Ptr) error

// SubTypeInitHook runs whenever a user subtype of a generated type is declared.
type SubTypeInitHook func(newType TypeID, args []any)

// ExternalToCppFunc converts a host value that is not a wrapper into a native pointer.
type ExternalToCppFunc func(v any) (objbridge.Ptr, error)

// ExternalIsConvertibleFunc reports whether ExternalToCppFunc accepts v.
type ExternalIsConvertibleFunc func(v any) bool

// DeleteUserDataFunc releases type user data.
type DeleteUserDataFunc func(data any)

// Extension is the per-type metadata attached to a dynamic type.
// It is read-only once the type is finalized, except for the type user
// data which can be set exactly once at any time.
type Extension struct {
	OriginalName            string
	TypeDiscovery           TypeDiscoveryFunc
	SpecialCast             SpecialCastFunc
	MultipleInheritanceInit MultipleInheritanceInitFunc
	Destructor              ObjectDestructor
	SubTypeInit             SubTypeInitHook
	ExternalToCpp           ExternalToCppFunc
	ExternalIsConvertible   ExternalIsConvertibleFunc

	miOffsets  []BaseOffset
	miComputed bool

	userData    any
	userDataDel DeleteUserDataFunc
	userDataSet bool
}

// inheritFrom copies everything a user subtype shares with its parent.
func (e *Extension) inheritFrom(parent *Extension) {
	e.TypeDiscovery = parent.TypeDiscovery
	e.SpecialCast = parent.SpecialCast
	e.MultipleInheritanceInit = parent.MultipleInheritanceInit
	e.Destructor = parent.Destructor
	e.SubTypeInit = parent.SubTypeInit
	e.ExternalToCpp = parent.ExternalToCpp
	e.ExternalIsConvertible = parent.ExternalIsConvertible
	e.miOffsets = parent.miOffsets
	e.miComputed = parent.miComputed
}

// Capabilities generated per-class glue may implement. Registry.Bind picks
// up whichever of these a glue value provides.

// TypeDiscoverer resolves the most derived type of a native object.
type TypeDiscoverer interface {
	DiscoverType(ptr objbridge.Ptr, declared TypeID) TypeID
}

// SpecialCaster adjusts pointers across non-trivial base relationships.
type SpecialCaster interface {
	SpecialCast(ptr objbridge.Ptr, target TypeID) objbridge.Ptr
}

// MultipleInheritanceInitializer describes base sub-object offsets.
type MultipleInheritanceInitializer interface {
	BaseOffsets(ptr objbridge.Ptr) []BaseOffset
}

// Destroyer destroys native objects of the type.
type Destroyer interface {
	DestroyNative(ptr objbridge.Ptr) error
}

// SubTypeIniter is notified when a user subtype is declared.
type SubTypeIniter interface {
	InitSubType(newType TypeID, args []any)
}

// ExternalConverter converts foreign host values to native pointers.
type ExternalConverter interface {
	ToNative(v any) (objbridge.Ptr, error)
	IsConvertible(v any) bool
}
