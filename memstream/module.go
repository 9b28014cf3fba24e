package memstream

import (
	"fmt"

	"memstream/provider"
)

// Module is one module loaded into a process
type Module struct {
	Name string
	Base provider.Address
	Size uint64
	Path string
}

// ModuleBase returns the load address of the named module
func (p *Process) ModuleBase(name string) (provider.Address, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, fmt.Errorf("%w: empty module name", ErrInvalidArgument)
	}

	base := p.session.provider.ModuleBase(p.pid, name)
	if base == 0 {
		return 0, fmt.Errorf("%w: module %q not loaded in %s", ErrResolutionFailed, name, p)
	}

	return base, nil
}

// Modules lists every module loaded into the process.
//
// TODO: build on a provider module map with the same size-then-fill and
// per-entry copy used by GetAllProcesses and Exports.
func (p *Process) Modules() ([]Module, error) {
	return nil, ErrNotImplemented
}
