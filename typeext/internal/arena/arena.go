// Package arena provides an append-only index space with stable IDs.
package arena

import "fmt"

// ID is a unique identifier for an item in the arena.
// ID 0 is never handed out.
type ID uint32

// Arena stores items by ID. Items are never removed.
type Arena[T any] struct {
	items []*T
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Alloc adds an item to the index space and returns its ID.
func (a *Arena[T]) Alloc(item T) ID {
	a.items = append(a.items, &item)
	return ID(len(a.items))
}

// Get retrieves an item by ID.
func (a *Arena[T]) Get(id ID) (*T, error) {
	if id == 0 || int(id) > len(a.items) {
		return nil, fmt.Errorf("type index %d out of range", id)
	}
	return a.items[id-1], nil
}

// Len returns the number of items in the index space.
func (a *Arena[T]) Len() int {
	return len(a.items)
}

// Each visits items in ID order.
func (a *Arena[T]) Each(fn func(ID, *T)) {
	for i, item := range a.items {
		fn(ID(i+1), item)
	}
}
