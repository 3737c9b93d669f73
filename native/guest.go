package native

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
)

// Export names a guest may provide for allocation.
const (
	MallocExport  = "malloc"
	FreeExport    = "free"
	ReallocExport = "cabi_realloc"
)

type allocStrategy uint8

const (
	strategyMalloc allocStrategy = iota
	strategyRealloc
	strategyPages
)

func (s allocStrategy) String() string {
	switch s {
	case strategyMalloc:
		return "malloc"
	case strategyRealloc:
		return "cabi_realloc"
	default:
		return "pages"
	}
}

// GuestHeap is the linear memory of a wazero guest module used as a native
// heap. Objects are allocated by the guest's malloc/free exports, or its
// cabi_realloc export, when present. Otherwise fresh pages are grown past
// the guest's current memory and carved up on the host side.
//
// GuestHeap is not safe for concurrent use.
type GuestHeap struct {
	ctx      context.Context
	mem      api.Memory
	malloc   api.Function
	free     api.Function
	realloc  api.Function
	strategy allocStrategy
	pages    *classAllocator
}

var _ objbridge.Heap = (*GuestHeap)(nil)

// NewGuestHeap wraps the memory exported by mod. ctx is used for calls
// into the guest allocator.
func NewGuestHeap(ctx context.Context, mod api.Module) (*GuestHeap, error) {
	if mod == nil {
		return nil, errors.InvalidInput(errors.PhaseNative, "nil guest module")
	}
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseNative, "memory of module", mod.Name())
	}

	h := &GuestHeap{ctx: ctx, mem: mem}
	h.malloc = mod.ExportedFunction(MallocExport)
	h.free = mod.ExportedFunction(FreeExport)
	h.realloc = mod.ExportedFunction(ReallocExport)

	switch {
	case h.malloc != nil && h.free != nil:
		h.strategy = strategyMalloc
	case h.realloc != nil:
		h.strategy = strategyRealloc
	default:
		h.strategy = strategyPages
		h.pages = newClassAllocator(wasmPages{mem}, alignUp(mem.Size(), PageSize))
	}

	Logger().Debug("guest heap ready",
		zap.String("module", mod.Name()),
		zap.Stringer("allocator", h.strategy),
		zap.Uint32("size", mem.Size()))
	return h, nil
}

// Memory returns the underlying wazero memory.
func (h *GuestHeap) Memory() api.Memory {
	return h.mem
}

// Size returns the guest memory size in bytes.
func (h *GuestHeap) Size() uint32 {
	return h.mem.Size()
}

// Alloc allocates size bytes aligned to align.
func (h *GuestHeap) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	switch h.strategy {
	case strategyMalloc:
		results, err := h.malloc.Call(h.ctx, uint64(size))
		if err != nil {
			return 0, errors.Wrap(errors.PhaseNative, errors.KindAllocation, err, "guest malloc")
		}
		return h.checkBlock(results, size, align)
	case strategyRealloc:
		results, err := h.realloc.Call(h.ctx, 0, 0, uint64(align), uint64(size))
		if err != nil {
			return 0, errors.Wrap(errors.PhaseNative, errors.KindAllocation, err, "guest cabi_realloc")
		}
		return h.checkBlock(results, size, align)
	default:
		return h.pages.Alloc(size, align)
	}
}

func (h *GuestHeap) checkBlock(results []uint64, size, align uint32) (uint32, error) {
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, errors.AllocationFailed(errors.PhaseNative, size, align)
	}
	ptr := uint32(results[0])
	if ptr&(align-1) != 0 {
		h.Free(ptr, size, align)
		return 0, errors.New(errors.PhaseNative, errors.KindAllocation).
			Value(ptr).
			Detail("guest returned block %#x not aligned to %d", ptr, align).
			Build()
	}
	return ptr, nil
}

// Free releases a block obtained from Alloc.
func (h *GuestHeap) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}
	var err error
	switch h.strategy {
	case strategyMalloc:
		_, err = h.free.Call(h.ctx, uint64(ptr))
	case strategyRealloc:
		_, err = h.realloc.Call(h.ctx, uint64(ptr), uint64(size), uint64(align), 0)
	default:
		h.pages.Free(ptr, size, align)
	}
	if err != nil {
		Logger().Warn("guest free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

func outOfBounds(offset, length uint32, size uint32) error {
	return errors.OutOfBounds(errors.PhaseNative, offset, length, size)
}

// Read returns a copy of length bytes at offset.
func (h *GuestHeap) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := h.mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds(offset, length, h.mem.Size())
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write copies data to offset.
func (h *GuestHeap) Write(offset uint32, data []byte) error {
	if !h.mem.Write(offset, data) {
		return outOfBounds(offset, uint32(len(data)), h.mem.Size())
	}
	return nil
}

func (h *GuestHeap) ReadU8(offset uint32) (uint8, error) {
	v, ok := h.mem.ReadByte(offset)
	if !ok {
		return 0, outOfBounds(offset, 1, h.mem.Size())
	}
	return v, nil
}

func (h *GuestHeap) ReadU16(offset uint32) (uint16, error) {
	v, ok := h.mem.ReadUint16Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 2, h.mem.Size())
	}
	return v, nil
}

func (h *GuestHeap) ReadU32(offset uint32) (uint32, error) {
	v, ok := h.mem.ReadUint32Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 4, h.mem.Size())
	}
	return v, nil
}

func (h *GuestHeap) ReadU64(offset uint32) (uint64, error) {
	v, ok := h.mem.ReadUint64Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 8, h.mem.Size())
	}
	return v, nil
}

func (h *GuestHeap) WriteU8(offset uint32, value uint8) error {
	if !h.mem.WriteByte(offset, value) {
		return outOfBounds(offset, 1, h.mem.Size())
	}
	return nil
}

func (h *GuestHeap) WriteU16(offset uint32, value uint16) error {
	if !h.mem.WriteUint16Le(offset, value) {
		return outOfBounds(offset, 2, h.mem.Size())
	}
	return nil
}

func (h *GuestHeap) WriteU32(offset uint32, value uint32) error {
	if !h.mem.WriteUint32Le(offset, value) {
		return outOfBounds(offset, 4, h.mem.Size())
	}
	return nil
}

func (h *GuestHeap) WriteU64(offset uint32, value uint64) error {
	if !h.mem.WriteUint64Le(offset, value) {
		return outOfBounds(offset, 8, h.mem.Size())
	}
	return nil
}

// wasmPages grows guest memory for the page allocator.
type wasmPages struct {
	mem api.Memory
}

func (w wasmPages) Size() uint32 { return w.mem.Size() }

func (w wasmPages) Grow(deltaPages uint32) bool {
	_, ok := w.mem.Grow(deltaPages)
	return ok
}
