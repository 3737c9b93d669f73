package native

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/objbridge/errors"
)

func TestLocalHeap_ReadWrite(t *testing.T) {
	h := NewLocalHeap(1, 0)

	if h.Size() != PageSize {
		t.Fatalf("Size() = %d, want %d", h.Size(), PageSize)
	}

	if err := h.WriteU8(0, 0xab); err != nil {
		t.Fatalf("WriteU8 failed: %v", err)
	}
	if err := h.WriteU16(2, 0xbeef); err != nil {
		t.Fatalf("WriteU16 failed: %v", err)
	}
	if err := h.WriteU32(4, 0xdeadbeef); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	if err := h.WriteU64(8, 0x0102030405060708); err != nil {
		t.Fatalf("WriteU64 failed: %v", err)
	}

	if v, _ := h.ReadU8(0); v != 0xab {
		t.Errorf("ReadU8 = %#x", v)
	}
	if v, _ := h.ReadU16(2); v != 0xbeef {
		t.Errorf("ReadU16 = %#x", v)
	}
	if v, _ := h.ReadU32(4); v != 0xdeadbeef {
		t.Errorf("ReadU32 = %#x", v)
	}
	if v, _ := h.ReadU64(8); v != 0x0102030405060708 {
		t.Errorf("ReadU64 = %#x", v)
	}

	// Little-endian layout
	b, err := h.Read(4, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if b[0] != 0xef || b[3] != 0xde {
		t.Fatalf("Read = % x, want little-endian", b)
	}

	// Read returns a copy
	b[0] = 0
	if v, _ := h.ReadU32(4); v != 0xdeadbeef {
		t.Fatal("Read aliased heap memory")
	}
}

func TestLocalHeap_OutOfBounds(t *testing.T) {
	h := NewLocalHeap(1, 1)
	oob := &errors.Error{Phase: errors.PhaseNative, Kind: errors.KindOutOfBounds}

	if _, err := h.ReadU32(PageSize - 2); !stderrors.Is(err, oob) {
		t.Fatalf("ReadU32 past end = %v", err)
	}
	if err := h.Write(PageSize-1, []byte{1, 2}); !stderrors.Is(err, oob) {
		t.Fatalf("Write past end = %v", err)
	}
	if _, err := h.Read(0xffffffff, 2); !stderrors.Is(err, oob) {
		t.Fatalf("Read with overflowing range = %v", err)
	}
}

func TestLocalHeap_Alloc(t *testing.T) {
	h := NewLocalHeap(0, 4)

	a, err := h.Alloc(24, 8)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if a == 0 || a%8 != 0 {
		t.Fatalf("Alloc returned %#x", a)
	}
	if h.Size() != PageSize {
		t.Fatalf("heap should grow to one page, got %d bytes", h.Size())
	}

	b, err := h.Alloc(24, 8)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if b == a || b < a+24 {
		t.Fatalf("blocks overlap: %#x and %#x", a, b)
	}

	aligned, err := h.Alloc(4, 64)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if aligned%64 != 0 {
		t.Fatalf("Alloc(4, 64) = %#x, not aligned", aligned)
	}

	// Freed blocks are reused within their size class
	h.Free(a, 24, 8)
	c, err := h.Alloc(20, 8)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if c != a {
		t.Fatalf("Alloc after Free = %#x, want reuse of %#x", c, a)
	}

	if _, err := h.Alloc(8, 3); err == nil {
		t.Fatal("non power of two alignment should fail")
	}
}

func TestLocalHeap_GrowLimit(t *testing.T) {
	h := NewLocalHeap(1, 2)

	if _, err := h.Alloc(PageSize, 8); err != nil {
		t.Fatalf("Alloc within limit failed: %v", err)
	}
	_, err := h.Alloc(PageSize, 8)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseNative, Kind: errors.KindAllocation}) {
		t.Fatalf("Alloc past limit = %v", err)
	}
	if h.Size() != 2*PageSize {
		t.Fatalf("Size() = %d, want two pages", h.Size())
	}
}

func TestSizeClass(t *testing.T) {
	tests := []struct {
		size, align, want uint32
	}{
		{0, 1, 8},
		{1, 1, 8},
		{8, 8, 8},
		{9, 4, 16},
		{24, 8, 32},
		{4, 64, 64},
		{100, 8, 128},
	}
	for _, tt := range tests {
		if got := sizeClass(tt.size, tt.align); got != tt.want {
			t.Errorf("sizeClass(%d, %d) = %d, want %d", tt.size, tt.align, got, tt.want)
		}
	}
}
