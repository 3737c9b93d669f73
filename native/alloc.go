package native

import (
	"math/bits"

	"github.com/wippyai/objbridge/errors"
)

// PageSize is the growth unit of native heaps, matching wasm pages.
const PageSize = 65536

const minClass = 8

// maxHeapPages keeps heap sizes representable as uint32.
const maxHeapPages = 65535

// growable is memory that can be extended by whole pages.
type growable interface {
	Size() uint32
	Grow(deltaPages uint32) bool
}

// classAllocator hands out blocks rounded up to power-of-two size classes
// from a bump pointer and recycles freed blocks per class.
type classAllocator struct {
	mem  growable
	next uint32
	free map[uint32][]uint32
}

func newClassAllocator(mem growable, base uint32) *classAllocator {
	if base == 0 {
		base = minClass
	}
	return &classAllocator{
		mem:  mem,
		next: base,
		free: make(map[uint32][]uint32),
	}
}

func sizeClass(size, align uint32) uint32 {
	n := max(size, align, minClass)
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len32(n)
}

func (a *classAllocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseNative, "alignment must be a power of two")
	}
	if size > 1<<31 {
		return 0, errors.AllocationFailed(errors.PhaseNative, size, align)
	}
	cls := sizeClass(size, align)

	blocks := a.free[cls]
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i]&(align-1) == 0 {
			ptr := blocks[i]
			a.free[cls] = append(blocks[:i], blocks[i+1:]...)
			return ptr, nil
		}
	}

	start := alignUp(a.next, max(align, minClass))
	end := uint64(start) + uint64(cls)
	if end > 1<<32-1 {
		return 0, errors.AllocationFailed(errors.PhaseNative, size, align)
	}
	if have := uint64(a.mem.Size()); end > have {
		pages := (end - have + PageSize - 1) / PageSize
		if !a.mem.Grow(uint32(pages)) {
			return 0, errors.AllocationFailed(errors.PhaseNative, size, align)
		}
	}
	a.next = uint32(end)
	return start, nil
}

func (a *classAllocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}
	cls := sizeClass(size, align)
	a.free[cls] = append(a.free[cls], ptr)
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
