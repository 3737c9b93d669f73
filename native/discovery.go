package native

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/typeext"
)

// TagDiscovery returns a type discovery function for objects that carry a
// 32-bit type tag tagOffset bytes into their layout. Tags missing from tags
// yield typeext.Invalid so the caller falls back to the declared type.
func TagDiscovery(mem objbridge.Memory, tagOffset uint32, tags map[uint32]typeext.TypeID) typeext.TypeDiscoveryFunc {
	return func(ptr objbridge.Ptr, declared typeext.TypeID) typeext.TypeID {
		if ptr.IsNull() {
			return typeext.Invalid
		}
		tag, err := mem.ReadU32(uint32(ptr.Add(tagOffset)))
		if err != nil {
			Logger().Debug("type tag unreadable",
				zap.Uint32("ptr", uint32(ptr)),
				zap.Error(err))
			return typeext.Invalid
		}
		if id, ok := tags[tag]; ok {
			return id
		}
		return typeext.Invalid
	}
}

// FreeDestructor returns a destructor that releases the object's block to
// alloc. size and align must match the allocation.
func FreeDestructor(alloc objbridge.Allocator, size, align uint32) typeext.ObjectDestructor {
	return func(ptr objbridge.Ptr) error {
		if !ptr.IsNull() {
			alloc.Free(uint32(ptr), size, align)
		}
		return nil
	}
}

// New allocates size bytes in heap, writes tag at tagOffset and returns
// the object's address. It is the native constructor counterpart of
// TagDiscovery. The tag must fit inside the object, so that size and align
// are also what FreeDestructor needs to release it.
func New(heap objbridge.Heap, size, align, tagOffset, tag uint32) (objbridge.Ptr, error) {
	if uint64(size) < uint64(tagOffset)+4 {
		return objbridge.Null, errors.InvalidInput(errors.PhaseNative,
			fmt.Sprintf("object size %d leaves no room for a type tag at offset %d", size, tagOffset))
	}
	ptr, err := heap.Alloc(size, align)
	if err != nil {
		return objbridge.Null, err
	}
	zero := make([]byte, size)
	if err := heap.Write(ptr, zero); err != nil {
		heap.Free(ptr, size, align)
		return objbridge.Null, err
	}
	if err := heap.WriteU32(ptr+tagOffset, tag); err != nil {
		heap.Free(ptr, size, align)
		return objbridge.Null, err
	}
	return objbridge.Ptr(ptr), nil
}
