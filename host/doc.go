// Package host models the parts of the host object runtime this library
// talks to: reference counted host objects and the host's error channel.
//
// Accessors in this library never unwind the caller. When an operation
// fails in a way the host should see (an invalid wrapper, a refused
// constructor) the error is set on an ErrorChannel and a sentinel is
// returned; the caller decides whether to abort:
//
//	if !obj.IsValid(true) {
//	    return errs.Fetch()
//	}
//
// ErrorChannel is not safe for concurrent use. It follows the host's
// single-threaded execution model.
package host
