// Package objbridge keeps host-side wrapper objects consistent with the
// native objects they stand for.
//
// A wrapper is bound to a native pointer and tracks whether that pointer
// may still be used, which side destroys the native allocation, the
// parent/child links between wrappers and the host references each wrapper
// keeps alive. Per-type native glue (type discovery, casts, base offsets,
// destructors) lives in a registry keyed by dynamic type.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	objbridge/           Root package with native Ptr, Memory and Allocator interfaces
//	├── wrapper/         Wrapper objects: validity, ownership, graph, kept references, teardown
//	├── typeext/         Dynamic type registry and per-type extension data
//	├── modules/         Cross-module API tables resolved by semantic version
//	├── native/          Local and wazero guest heaps, tag-based type discovery
//	├── metrics/         Prometheus collector for wrapper lifecycle events
//	├── handle/          Slot table for wrapper handles
//	├── host/            Host object and error channel abstractions
//	├── errors/          Structured error types for debugging
//	└── cmd/bridgectl/   Scenario runner and interactive inspector
//
// # Quick Start
//
// Declare types, wrap a native pointer and let discovery pick the most
// derived type:
//
//	types := typeext.NewRegistry(nil)
//	widget, _ := types.Declare("Widget")
//	button, _ := types.Declare("Button", widget)
//	_ = types.SetTypeDiscoveryFunction(widget, native.TagDiscovery(heap, 0, tags))
//	_ = types.SetDestructorFunction(button, native.FreeDestructor(heap, 32, 8))
//
//	mgr := wrapper.NewManagerWithDefaults(types)
//	defer mgr.Close()
//
//	obj, err := mgr.NewObject(widget, ptr, true, false, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(obj.TypeName()) // "Button"
//
// # Ownership
//
// Exactly one side destroys a native object. A wrapper created with
// ownership runs the type's destructor when it is swept; attaching it to a
// parent hands ownership to the native side, and the parent keeps it alive.
// Destroying a parent invalidates every descendant.
//
// # Thread Safety
//
// Nothing in this module locks. Managers, objects and registries follow the
// host's single-threaded execution model and must be serialized by the
// caller.
package objbridge
