package provider_snapshot

import (
	"fmt"
	"sync"

	"memstream/provider"
)

// Symbol is one captured table row
type Symbol struct {
	Name    string           `json:"name" yaml:"name"`
	Address provider.Address `json:"address" yaml:"address"`
}

// Module is one captured module with its tables
type Module struct {
	Name          string           `json:"name" yaml:"name"`
	Base          provider.Address `json:"base" yaml:"base"`
	ExportVersion uint32           `json:"export_version,omitempty" yaml:"export_version,omitempty"`
	ImportVersion uint32           `json:"import_version,omitempty" yaml:"import_version,omitempty"`
	Exports       []Symbol         `json:"exports" yaml:"exports"`
	Imports       []Symbol         `json:"imports" yaml:"imports"`
}

// Process is one captured process
type Process struct {
	provider.ProcessInformation `yaml:",inline"`
	Modules                     []Module `json:"modules" yaml:"modules"`
}

// Snapshot implements provider.Provider over a static capture.
//
// Processes keep file order; that order is the scan order of PidList and the
// tie-break of PidFromName.
type Snapshot struct {
	Processes []Process `json:"processes" yaml:"processes"`

	mu     sync.Mutex
	closed bool
}

// New creates an empty snapshot
func New() *Snapshot {
	return &Snapshot{}
}

// Add appends a process with its modules
func (s *Snapshot) Add(info provider.ProcessInformation, modules ...Module) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processes = append(s.Processes, Process{ProcessInformation: info, Modules: modules})
}

// Close drops the captured data. Later queries fail with provider.ErrClosed.
func (s *Snapshot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processes = nil
	s.closed = true
	return nil
}

func (s *Snapshot) find(pid provider.ProcessID) (*Process, error) {
	if s.closed {
		return nil, provider.ErrClosed
	}
	for i := range s.Processes {
		if s.Processes[i].PID == pid {
			return &s.Processes[i], nil
		}
	}
	return nil, fmt.Errorf("pid %d: %w", pid, provider.ErrProcessNotFound)
}

func (p *Process) module(name string) (*Module, error) {
	for i := range p.Modules {
		if p.Modules[i].Name == name {
			return &p.Modules[i], nil
		}
	}
	return nil, fmt.Errorf("%s in pid %d: %w", name, p.PID, provider.ErrModuleNotFound)
}

func (s *Snapshot) PidFromName(name string) (provider.ProcessID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, provider.ErrClosed
	}
	for _, p := range s.Processes {
		if p.Name == name || p.NameLong == name {
			return p.PID, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", name, provider.ErrProcessNotFound)
}

func (s *Snapshot) PidList(pids []provider.ProcessID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, provider.ErrClosed
	}
	if pids == nil {
		return len(s.Processes), nil
	}
	if len(pids) < len(s.Processes) {
		return 0, provider.ErrBufferTooSmall
	}
	for i, p := range s.Processes {
		pids[i] = p.PID
	}
	return len(s.Processes), nil
}

func (s *Snapshot) ProcessInformation(pid provider.ProcessID) (*provider.ProcessInformation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.find(pid)
	if err != nil {
		return nil, err
	}
	info := p.ProcessInformation
	return &info, nil
}

func (s *Snapshot) ModuleBase(pid provider.ProcessID, module string) provider.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.find(pid)
	if err != nil {
		return 0
	}
	m, err := p.module(module)
	if err != nil {
		return 0
	}
	return m.Base
}

func (s *Snapshot) ExportMap(pid provider.ProcessID, module string) (provider.SymbolMap, error) {
	return s.symbolMap(pid, module, func(m *Module) (uint32, []Symbol) {
		return versionOr(m.ExportVersion, provider.ExportMapVersion), m.Exports
	})
}

func (s *Snapshot) ImportMap(pid provider.ProcessID, module string) (provider.SymbolMap, error) {
	return s.symbolMap(pid, module, func(m *Module) (uint32, []Symbol) {
		return versionOr(m.ImportVersion, provider.ImportMapVersion), m.Imports
	})
}

func (s *Snapshot) symbolMap(pid provider.ProcessID, module string, table func(*Module) (uint32, []Symbol)) (provider.SymbolMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.find(pid)
	if err != nil {
		return nil, err
	}
	m, err := p.module(module)
	if err != nil {
		return nil, err
	}

	version, symbols := table(m)
	rows := make([]provider.SymbolRow, len(symbols))
	for i, sym := range symbols {
		rows[i] = provider.SymbolRow{Name: sym.Name, Address: sym.Address}
	}
	return provider.NewSliceMap(version, rows), nil
}

func versionOr(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}
