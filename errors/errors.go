package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegister  Phase = "register"  // type registration
	PhaseBind      Phase = "bind"      // wrapping a native pointer
	PhaseAccess    Phase = "access"    // native pointer access
	PhaseGraph     Phase = "graph"     // parent/child edits
	PhaseTeardown  Phase = "teardown"  // dealloc and destroy
	PhaseImport    Phase = "import"    // module lookup
	PhaseConstruct Phase = "construct" // constructor dispatch
	PhaseNative    Phase = "native"    // native heap operations
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidAccess            Kind = "invalid_access"
	KindConstructionNotPermitted Kind = "construction_not_permitted"
	KindModuleResolution         Kind = "module_resolution"
	KindNilPointer               Kind = "nil_pointer"
	KindTypeMismatch             Kind = "type_mismatch"
	KindNotFound                 Kind = "not_found"
	KindFinalized                Kind = "finalized"
	KindAlreadySet               Kind = "already_set"
	KindGraphCycle               Kind = "graph_cycle"
	KindRegistration             Kind = "registration"
	KindAllocation               Kind = "allocation"
	KindOutOfBounds              Kind = "out_of_bounds"
	KindInvalidInput             Kind = "invalid_input"
	KindDestructor               Kind = "destructor"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	GoType     string
	NativeType string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.NativeType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.NativeType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", native type ")
			b.WriteString(e.NativeType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("native type ")
			b.WriteString(e.NativeType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.NativeType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the object path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// NativeType sets the native type name
func (b *Builder) NativeType(t string) *Builder {
	b.err.NativeType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidAccess reports use of a wrapper whose native object is gone
func InvalidAccess(typeName string) *Error {
	return &Error{
		Phase:      PhaseAccess,
		Kind:       KindInvalidAccess,
		NativeType: typeName,
		Detail:     fmt.Sprintf("internal native object (%s) already deleted", typeName),
	}
}

// ConstructionNotPermitted reports a constructor that cannot build myType
func ConstructionNotPermitted(myType, ctorType string) *Error {
	return &Error{
		Phase:  PhaseConstruct,
		Kind:   KindConstructionNotPermitted,
		Detail: fmt.Sprintf("%s isn't a direct base class of %s", ctorType, myType),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, nativeType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindTypeMismatch,
		Path:       path,
		GoType:     goType,
		NativeType: nativeType,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// OutOfBounds creates an error for a memory access of length bytes at
// offset that does not fit in size bytes.
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("memory access out of bounds: offset=%d, length=%d, size=%d", offset, length, size),
		Value:  offset,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, nativeType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindNilPointer,
		Path:       path,
		NativeType: nativeType,
		Detail:     "nil pointer",
	}
}

// Finalized reports a mutation of a type after finalization
func Finalized(typeName, what string) *Error {
	return &Error{
		Phase:      PhaseRegister,
		Kind:       KindFinalized,
		NativeType: typeName,
		Detail:     fmt.Sprintf("cannot set %s after finalization", what),
	}
}

// AlreadySet reports a second write to a set-once slot
func AlreadySet(phase Phase, typeName, what string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindAlreadySet,
		NativeType: typeName,
		Detail:     fmt.Sprintf("%s already set", what),
	}
}

// GraphCycle reports a parent edge that would close a cycle
func GraphCycle(parent, child string) *Error {
	return &Error{
		Phase:  PhaseGraph,
		Kind:   KindGraphCycle,
		Detail: fmt.Sprintf("%s is a descendant of %s", parent, child),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", name),
		Cause:  cause,
	}
}

// MissingModule represents a single unresolved module import
type MissingModule struct {
	Name       string // e.g., "sample"
	Constraint string // e.g., "^1.2", empty when any version is accepted
	Reason     string
}

// MissingModulesError is returned when one or more module imports fail
type MissingModulesError struct {
	Modules []MissingModule
}

// Add records one unresolved module with a reason.
func (e *MissingModulesError) Add(spec, reason string) {
	name, constraint := ParseModuleSpec(spec)
	e.Modules = append(e.Modules, MissingModule{
		Name:       name,
		Constraint: constraint,
		Reason:     reason,
	})
}

// ParseModuleSpec splits "name@constraint" into its parts.
func ParseModuleSpec(spec string) (name, constraint string) {
	name, constraint, found := strings.Cut(spec, "@")
	if found {
		return name, constraint
	}
	return spec, ""
}

func (e *MissingModulesError) Error() string {
	if len(e.Modules) == 0 {
		return "[import] module_resolution: no modules specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d module(s):\n", len(e.Modules)))

	// Group by module name for cleaner output
	byName := make(map[string][]MissingModule)
	var order []string
	for _, m := range e.Modules {
		if _, exists := byName[m.Name]; !exists {
			order = append(order, m.Name)
		}
		byName[m.Name] = append(byName[m.Name], m)
	}

	for _, name := range order {
		b.WriteString("\n  ")
		b.WriteString(name)
		b.WriteString(":\n")
		for _, m := range byName[name] {
			b.WriteString("    - ")
			if m.Constraint != "" {
				b.WriteString("requires ")
				b.WriteString(m.Constraint)
			} else {
				b.WriteString("any version")
			}
			if m.Reason != "" {
				b.WriteString(" (")
				b.WriteString(m.Reason)
				b.WriteByte(')')
			}
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingModulesError) Is(target error) bool {
	_, ok := target.(*MissingModulesError)
	return ok
}

// ModuleNotFound creates a module resolution error
func ModuleNotFound(name, reason string) *Error {
	return &Error{
		Phase:  PhaseImport,
		Kind:   KindModuleResolution,
		Detail: fmt.Sprintf("module %q: %s", name, reason),
	}
}
