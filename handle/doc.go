// Package handle provides the slot table that gives every live wrapper a
// stable integer identity.
//
// Wrappers refer to each other by Handle rather than by pointer: a child
// records its parent's handle as a non-owning back-pointer, and a parent
// lists its children's handles. Only the table owns the values.
//
//	table := handle.NewTable[*Widget]()
//
//	// Store a value, get a handle
//	h, err := table.Create(w)
//
//	// Retrieve value by handle
//	w, ok := table.Get(h)
//
//	// Remove and get value
//	w, ok = table.Remove(h)
//
// Handle 0 is reserved and always invalid. Freed slots are reused, so a
// handle must not be used after Remove.
package handle
