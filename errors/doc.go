// Package errors provides structured error types for the objbridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: object path, Go/native type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAccess, errors.KindInvalidAccess).
//		Path("window", "layout").
//		NativeType("QLayout").
//		Detail("internal native object already deleted").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidAccess("QLayout")
//	err := errors.ConstructionNotPermitted("Derived", "Unrelated")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
