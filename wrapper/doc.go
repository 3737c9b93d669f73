// Package wrapper tracks host-side wrappers of native objects: whether the
// native object may still be touched, which side destroys it, which
// container owns it, and which host objects it keeps alive.
//
// # Main Types
//
//   - Manager: creates wrappers, maps native pointers to them, tears them down
//   - Object: one wrapper, reference counted by the host
//
// # Lifecycle
//
// A wrapper is created by NewObject (or Construct) with one reference owned
// by the caller. It may then be attached to a container with SetParent and
// may keep other host objects alive with KeepReference. When the native side
// destroys the object, Destroy invalidates it and every descendant. When the
// last host reference is dropped the wrapper is deallocated:
//
//  1. descendants are invalidated and the container edges are released
//  2. the type's native destructor runs if the wrapper owns a valid object
//  3. kept references and user data are released
//
// # Type Resolution
//
// NewObject picks the dynamic type of a new wrapper in this order:
//
//  1. the declared type, when the caller says it is exact
//  2. the declared type's discovery function
//  3. the type name hint
//  4. the declared type
//
// # Thread Safety
//
// Manager and Object are NOT safe for concurrent use. They follow the
// host's single-threaded execution model.
//
// # Example
//
//	mgr := wrapper.NewManagerWithDefaults(types)
//	defer mgr.Close()
//
//	window, _ := mgr.NewObject(windowType, ptr, true, false, "")
//	button, _ := mgr.NewObject(buttonType, btnPtr, true, true, "")
//	mgr.SetParent(window, button)
//	button.DecRef() // window keeps it alive
package wrapper
