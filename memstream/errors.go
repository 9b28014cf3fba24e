// Package memstream resolves processes, module bases and symbol tables
// through a memory introspection provider.
//
// Every operation is synchronous. The package keeps no state between calls
// and adds no locking: a Session may be shared across goroutines only when
// its provider supports concurrent queries.
package memstream

import "errors"

var (
	// ErrUninitializedContext is returned when the session, its provider, or the
	// process to session chain is missing.
	ErrUninitializedContext = errors.New("uninitialized context")

	// ErrInvalidArgument is returned when a required input is empty.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResolutionFailed is returned when the provider found nothing, failed,
	// or produced a table with an unexpected layout version.
	ErrResolutionFailed = errors.New("resolution failed")

	// ErrNotImplemented is returned by operations that are declared but not built.
	ErrNotImplemented = errors.New("not implemented")
)
