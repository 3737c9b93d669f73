package objbridge

// Ptr is an address in a native heap. The zero value is the null pointer.
type Ptr uint32

// Null is the null native pointer.
const Null Ptr = 0

// IsNull reports whether p is the null pointer.
func (p Ptr) IsNull() bool {
	return p == Null
}

// Add returns p displaced by off bytes.
func (p Ptr) Add(off uint32) Ptr {
	return p + Ptr(off)
}

// Memory represents native memory holding wrapped objects
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of native memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates native objects
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Heap is native memory together with its allocator.
type Heap interface {
	Memory
	Allocator
}
