package native

import (
	"encoding/binary"

	"github.com/wippyai/objbridge"
)

// LocalHeap is an in-process native heap: little-endian byte memory that
// grows by pages, with a size-class allocator. Address 0 is never handed
// out.
type LocalHeap struct {
	data     []byte
	maxPages uint32
	alloc    *classAllocator
}

var _ objbridge.Heap = (*LocalHeap)(nil)

// NewLocalHeap creates a heap of initialPages pages that may grow up to
// maxPages pages. maxPages 0 means as large as a 32-bit address allows.
func NewLocalHeap(initialPages, maxPages uint32) *LocalHeap {
	if maxPages == 0 || maxPages > maxHeapPages {
		maxPages = maxHeapPages
	}
	h := &LocalHeap{
		data:     make([]byte, uint64(min(initialPages, maxPages))*PageSize),
		maxPages: maxPages,
	}
	h.alloc = newClassAllocator(h, 0)
	return h
}

// Size returns the heap size in bytes.
func (h *LocalHeap) Size() uint32 {
	return uint32(len(h.data))
}

// Grow extends the heap by deltaPages pages.
func (h *LocalHeap) Grow(deltaPages uint32) bool {
	pages := uint64(len(h.data))/PageSize + uint64(deltaPages)
	if pages > uint64(h.maxPages) {
		return false
	}
	h.data = append(h.data, make([]byte, uint64(deltaPages)*PageSize)...)
	return true
}

// Alloc allocates size bytes aligned to align.
func (h *LocalHeap) Alloc(size, align uint32) (uint32, error) {
	return h.alloc.Alloc(size, align)
}

// Free returns a block obtained from Alloc with the same size and align.
func (h *LocalHeap) Free(ptr, size, align uint32) {
	h.alloc.Free(ptr, size, align)
}

func (h *LocalHeap) span(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(h.data)) {
		return nil, outOfBounds(offset, length, uint32(len(h.data)))
	}
	return h.data[offset:end], nil
}

// Read returns a copy of length bytes at offset.
func (h *LocalHeap) Read(offset uint32, length uint32) ([]byte, error) {
	b, err := h.span(offset, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Write copies data to offset.
func (h *LocalHeap) Write(offset uint32, data []byte) error {
	b, err := h.span(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (h *LocalHeap) ReadU8(offset uint32) (uint8, error) {
	b, err := h.span(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (h *LocalHeap) ReadU16(offset uint32) (uint16, error) {
	b, err := h.span(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (h *LocalHeap) ReadU32(offset uint32) (uint32, error) {
	b, err := h.span(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (h *LocalHeap) ReadU64(offset uint32) (uint64, error) {
	b, err := h.span(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (h *LocalHeap) WriteU8(offset uint32, value uint8) error {
	b, err := h.span(offset, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

func (h *LocalHeap) WriteU16(offset uint32, value uint16) error {
	b, err := h.span(offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

func (h *LocalHeap) WriteU32(offset uint32, value uint32) error {
	b, err := h.span(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

func (h *LocalHeap) WriteU64(offset uint32, value uint64) error {
	b, err := h.span(offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}
