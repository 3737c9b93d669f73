// Package typeext holds the dynamic types wrappers are created with and
// the per-type extension generated glue attaches to them.
//
// Types are stored in an append-only arena and addressed by TypeID. Each
// type has exactly one Extension: its native name, type discovery, special
// cast, multiple inheritance offsets, destructor, sub-type hook and external
// conversions. An extension is frozen by Finalize; only the type user data
// may still be set, once.
//
// Glue usually installs everything at once with Bind, which picks up the
// capability interfaces the glue value implements:
//
//	id, _ := reg.Declare("Button", widget)
//	_ = reg.Bind(id, buttonGlue{})
//	_ = reg.Finalize(id)
//
// Registry is not safe for concurrent use.
package typeext
