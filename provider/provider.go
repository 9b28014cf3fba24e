// Package provider defines the memory introspection provider consumed by memstream.
package provider

import "errors"

// This file holds the collaborator contract. Concrete providers live in:
// - provider_procfs: the local host through /proc (linux)
// - provider_vmm: MemProcFS vmm.dll (windows)
// - provider_snapshot: an offline JSON/YAML capture

var (
	// ErrProcessNotFound is returned when no process matches a name or pid.
	ErrProcessNotFound = errors.New("process not found")

	// ErrModuleNotFound is returned when a module is not loaded in the target process.
	ErrModuleNotFound = errors.New("module not found")

	// ErrBufferTooSmall is returned by the fill step of PidList when the process set
	// grew between the size query and the fill query.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrClosed is returned by any query made after the provider was closed.
	ErrClosed = errors.New("provider closed")
)

// Provider is a live, read-only view of a machine's processes and loaded modules.
//
// Implementations decide whether concurrent queries are safe; memstream adds no locking
// of its own.
type Provider interface {
	// PidFromName resolves a process name through the provider's own name index.
	// Case sensitivity and tie-breaking are provider-defined.
	PidFromName(name string) (ProcessID, error)

	// PidList is a two-phase query. With a nil buffer it returns the number of
	// identifiers available. With a buffer it fills it and returns how many were
	// written, or ErrBufferTooSmall.
	PidList(pids []ProcessID) (int, error)

	// ProcessInformation returns per-process metadata.
	ProcessInformation(pid ProcessID) (*ProcessInformation, error)

	// ModuleBase returns the load address of a module, or 0 when it is not loaded.
	ModuleBase(pid ProcessID, module string) Address

	// ExportMap returns the export address table of a module. The caller must Release it.
	ExportMap(pid ProcessID, module string) (SymbolMap, error)

	// ImportMap returns the import address table of a module. The caller must Release it.
	ImportMap(pid ProcessID, module string) (SymbolMap, error)
}
