//go:build linux

package provider_procfs

import (
	"fmt"
	"path/filepath"
	"sort"

	"memstream/provider"
	"memstream/provider/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcFS implements provider.Provider for the local host
type ProcFS struct {
	log *logger.Logger
}

// New creates a provider over the local /proc
func New() *ProcFS {
	return &ProcFS{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "procfs")),
	}
}

// Close is a no-op; the host has nothing to release
func (p *ProcFS) Close() error {
	return nil
}

// PidFromName returns the lowest pid whose long name or comm equals name.
// Matching is case-sensitive, like pidof.
func (p *ProcFS) PidFromName(name string) (provider.ProcessID, error) {
	pids, err := process.Pids()
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	for _, pid := range pids {
		info, err := p.ProcessInformation(provider.ProcessID(pid))
		if err != nil {
			// Process may have terminated while we were reading
			continue
		}
		if info.NameLong == name || info.Name == name {
			return info.PID, nil
		}
	}

	return 0, fmt.Errorf("%s: %w", name, provider.ErrProcessNotFound)
}

// PidList lists the host's pids. Processes started between the size query and
// the fill query are not reported.
func (p *ProcFS) PidList(pids []provider.ProcessID) (int, error) {
	all, err := process.Pids()
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}
	if pids == nil {
		return len(all), nil
	}

	if len(all) > len(pids) {
		p.log.Debugln("Pid list grew from", len(pids), "to", len(all), "between queries")
		all = all[:len(pids)]
	}
	for i, pid := range all {
		pids[i] = provider.ProcessID(pid)
	}
	return len(all), nil
}

// ProcessInformation reads comm, exe and parent pid
func (p *ProcFS) ProcessInformation(pid provider.ProcessID) (*provider.ProcessInformation, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", pid, provider.ErrProcessNotFound)
	}

	name, err := proc.Name()
	if err != nil {
		return nil, fmt.Errorf("failed to read process name: %w", err)
	}

	info := &provider.ProcessInformation{
		PID:      pid,
		Name:     name,
		NameLong: name,
	}

	// Some processes don't have an exe (e.g., kernel threads)
	if exe, err := proc.Exe(); err == nil && exe != "" {
		info.Path = exe
		info.NameLong = filepath.Base(exe)
	}

	if ppid, err := proc.Ppid(); err == nil {
		info.PPID = provider.ProcessID(ppid)
	}

	return info, nil
}

// ModuleBase returns the load base of a mapped file, matched on basename
func (p *ProcFS) ModuleBase(pid provider.ProcessID, module string) provider.Address {
	mm, err := memory_map.ReadMemoryMap(int(pid))
	if err != nil {
		p.log.Debugln("Failed to read memory map for", pid, ":", err)
		return 0
	}
	return provider.Address(memory_map.ModuleBase(module, mm))
}

// ExportMap returns the defined dynamic symbols of a mapped ELF module
func (p *ProcFS) ExportMap(pid provider.ProcessID, module string) (provider.SymbolMap, error) {
	img, err := p.openModule(pid, module)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	rows, err := img.exports()
	if err != nil {
		return nil, err
	}
	return provider.NewSliceMap(provider.ExportMapVersion, rows), nil
}

// ImportMap returns the relocation slots of a mapped ELF module that bind
// to undefined dynamic symbols
func (p *ProcFS) ImportMap(pid provider.ProcessID, module string) (provider.SymbolMap, error) {
	img, err := p.openModule(pid, module)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	rows, err := img.imports()
	if err != nil {
		return nil, err
	}
	return provider.NewSliceMap(provider.ImportMapVersion, rows), nil
}

func (p *ProcFS) openModule(pid provider.ProcessID, module string) (*elfImage, error) {
	mm, err := memory_map.ReadMemoryMap(int(pid))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory map: %w", err)
	}

	item := memory_map.FindModule(module, mm)
	if item == nil {
		return nil, fmt.Errorf("%s in pid %d: %w", module, pid, provider.ErrModuleNotFound)
	}

	// Prefer the file as the target sees it, which differs inside containers
	candidates := []string{
		filepath.Join(fmt.Sprintf("/proc/%d/root", pid), item.Path),
		item.Path,
	}

	var lastErr error
	for _, path := range candidates {
		img, err := openELF(path, provider.Address(memory_map.ModuleBase(module, mm)))
		if err == nil {
			return img, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to open module %s: %w", module, lastErr)
}
