// Package native provides the native heaps wrapped objects live in and the
// per-type glue that reads them.
//
// Two heaps implement objbridge.Heap:
//
//   - LocalHeap: in-process little-endian memory with a size-class allocator
//   - GuestHeap: the linear memory of a wazero guest module
//
// GuestHeap allocates through the guest's malloc/free exports, then its
// cabi_realloc export, and otherwise grows fresh pages and allocates from
// them on the host side.
//
// Objects built with New carry a 32-bit type tag at a fixed offset.
// TagDiscovery reads it back to resolve the most derived type of a pointer:
//
//	heap := native.NewLocalHeap(1, 0)
//	ptr, _ := native.New(heap, 32, 8, 0, tagButton)
//	_ = types.SetTypeDiscoveryFunction(widget, native.TagDiscovery(heap, 0, tags))
//	_ = types.SetDestructorFunction(button, native.FreeDestructor(heap, 32, 8))
package native
