package handle

// Handle is an opaque reference to a value in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Invalid is the reserved zero handle.
const Invalid Handle = 0

// Valid reports whether h can refer to a slot.
func (h Handle) Valid() bool {
	return h != Invalid
}
