package handle

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("handle table closed")

// Table is an in-memory slot table with a free list.
type Table[T any] struct {
	entries  []entry[T]
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry[T any] struct {
	value T
	valid bool
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries:  make([]entry[T], 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Create stores a value and returns its handle.
func (t *Table[T]) Create(value T) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return Invalid, ErrClosed
	}

	e := entry[T]{value: value, valid: true}

	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = e
		return h, nil
	}

	t.entries = append(t.entries, e)
	return Handle(len(t.entries)), nil
}

// Get retrieves a value by handle.
func (t *Table[T]) Get(h Handle) (T, bool) {
	var zero T
	if h == Invalid {
		return zero, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := h - 1
	if int(idx) >= len(t.entries) {
		return zero, false
	}

	e := t.entries[idx]
	if !e.valid {
		return zero, false
	}
	return e.value, true
}

// Remove frees the slot and returns (value, true) if it was live.
func (t *Table[T]) Remove(h Handle) (T, bool) {
	var zero T
	if h == Invalid {
		return zero, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := h - 1
	if int(idx) >= len(t.entries) {
		return zero, false
	}

	e := &t.entries[idx]
	if !e.valid {
		return zero, false
	}

	value := e.value
	e.valid = false
	e.value = zero
	t.freeList = append(t.freeList, h)

	return value, true
}

// Len returns the number of live values.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, e := range t.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live values in handle order until fn returns false.
// fn must not mutate the table; collect handles first to do that.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, e := range t.entries {
		if e.valid {
			if !fn(Handle(i+1), e.value) {
				break
			}
		}
	}
}

// Close stops accepting inserts and drops every value.
func (t *Table[T]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.entries = nil
	t.freeList = nil
	return nil
}
