//go:build windows

package provider_vmm

import (
	"fmt"
	"sync"
	"unsafe"

	"memstream/provider"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

// DLLName is the MemProcFS library loaded by Open
const DLLName = "vmm.dll"

var (
	modvmm                    = windows.NewLazyDLL(DLLName)
	procInitialize            = modvmm.NewProc("VMMDLL_Initialize")
	procClose                 = modvmm.NewProc("VMMDLL_Close")
	procMemFree               = modvmm.NewProc("VMMDLL_MemFree")
	procPidGetFromName        = modvmm.NewProc("VMMDLL_PidGetFromName")
	procPidList               = modvmm.NewProc("VMMDLL_PidList")
	procProcessGetInformation = modvmm.NewProc("VMMDLL_ProcessGetInformation")
	procProcessGetModuleBaseU = modvmm.NewProc("VMMDLL_ProcessGetModuleBaseU")
	procMapGetEATU            = modvmm.NewProc("VMMDLL_Map_GetEATU")
	procMapGetIATU            = modvmm.NewProc("VMMDLL_Map_GetIATU")
)

// VMM implements provider.Provider over a MemProcFS session.
// MemProcFS queries are thread safe; Close waits for queries in flight.
type VMM struct {
	handle uintptr
	log    *logger.Logger
	mu     sync.RWMutex
}

// Open initializes MemProcFS with the given command line, e.g. "-device", "fpga"
func Open(args ...string) (*VMM, error) {
	if err := modvmm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", DLLName, err)
	}

	argv := make([]*byte, 0, len(args)+1)
	for _, arg := range append([]string{""}, args...) {
		p, err := windows.BytePtrFromString(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", arg, err)
		}
		argv = append(argv, p)
	}

	handle, _, err := procInitialize.Call(uintptr(len(argv)), uintptr(unsafe.Pointer(&argv[0])))
	if handle == 0 {
		return nil, fmt.Errorf("VMMDLL_Initialize failed: %v", err)
	}

	v := &VMM{
		handle: handle,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "vmm")),
	}
	v.log.Infoln("MemProcFS session opened")
	return v, nil
}

// Close ends the MemProcFS session. Processes resolved through it become invalid.
func (v *VMM) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.handle != 0 {
		procClose.Call(v.handle)
		v.handle = 0
		v.log.Infoln("MemProcFS session closed")
	}
	return nil
}

// acquire returns the live handle with the read lock held
func (v *VMM) acquire() (uintptr, bool) {
	v.mu.RLock()
	if v.handle == 0 {
		v.mu.RUnlock()
		return 0, false
	}
	return v.handle, true
}

func (v *VMM) PidFromName(name string) (provider.ProcessID, error) {
	h, ok := v.acquire()
	if !ok {
		return 0, provider.ErrClosed
	}
	defer v.mu.RUnlock()

	cname, err := windows.BytePtrFromString(name)
	if err != nil {
		return 0, err
	}

	var pid uint32
	ret, _, _ := procPidGetFromName.Call(h, uintptr(unsafe.Pointer(cname)), uintptr(unsafe.Pointer(&pid)))
	if ret == 0 {
		return 0, fmt.Errorf("%s: %w", name, provider.ErrProcessNotFound)
	}
	return provider.ProcessID(pid), nil
}

func (v *VMM) PidList(pids []provider.ProcessID) (int, error) {
	h, ok := v.acquire()
	if !ok {
		return 0, provider.ErrClosed
	}
	defer v.mu.RUnlock()

	if pids != nil && len(pids) == 0 {
		return 0, nil
	}

	count := uintptr(len(pids))
	var buf uintptr
	if len(pids) > 0 {
		buf = uintptr(unsafe.Pointer(&pids[0]))
	}

	ret, _, _ := procPidList.Call(h, buf, uintptr(unsafe.Pointer(&count)))
	if ret == 0 {
		if pids != nil {
			return 0, provider.ErrBufferTooSmall
		}
		return 0, fmt.Errorf("VMMDLL_PidList failed")
	}
	return int(count), nil
}

func (v *VMM) ProcessInformation(pid provider.ProcessID) (*provider.ProcessInformation, error) {
	h, ok := v.acquire()
	if !ok {
		return nil, provider.ErrClosed
	}
	defer v.mu.RUnlock()

	info := vmmProcessInformation{
		magic:    processInformationMagic,
		wVersion: processInformationVersion,
	}
	size := unsafe.Sizeof(info)
	ret, _, _ := procProcessGetInformation.Call(h, uintptr(pid), uintptr(unsafe.Pointer(&info)), uintptr(unsafe.Pointer(&size)))
	if ret == 0 {
		return nil, fmt.Errorf("VMMDLL_ProcessGetInformation failed for pid %d", pid)
	}

	return &provider.ProcessInformation{
		PID:      provider.ProcessID(info.dwPID),
		PPID:     provider.ProcessID(info.dwPPID),
		Name:     windows.ByteSliceToString(info.szName[:]),
		NameLong: windows.ByteSliceToString(info.szNameLong[:]),
	}, nil
}

func (v *VMM) ModuleBase(pid provider.ProcessID, module string) provider.Address {
	h, ok := v.acquire()
	if !ok {
		return 0
	}
	defer v.mu.RUnlock()

	cname, err := windows.BytePtrFromString(module)
	if err != nil {
		return 0
	}
	base, _, _ := procProcessGetModuleBaseU.Call(h, uintptr(pid), uintptr(unsafe.Pointer(cname)))
	return provider.Address(base)
}

func (v *VMM) ExportMap(pid provider.ProcessID, module string) (provider.SymbolMap, error) {
	var m *vmmMapEAT
	if err := v.getMap(procMapGetEATU, pid, module, unsafe.Pointer(&m)); err != nil {
		return nil, err
	}

	// Rows are only laid out as vmmMapEATEntry for the known version
	var rows []provider.SymbolRow
	if m.dwVersion == provider.ExportMapVersion {
		entries := unsafe.Slice((*vmmMapEATEntry)(unsafe.Add(unsafe.Pointer(m), unsafe.Sizeof(*m))), m.cMap)
		rows = make([]provider.SymbolRow, len(entries))
		for i := range entries {
			rows[i] = provider.SymbolRow{Name: cstring(entries[i].uszFunction), Address: provider.Address(entries[i].vaFunction)}
		}
	}
	return &nativeMap{ptr: unsafe.Pointer(m), version: m.dwVersion, rows: rows}, nil
}

func (v *VMM) ImportMap(pid provider.ProcessID, module string) (provider.SymbolMap, error) {
	var m *vmmMapIAT
	if err := v.getMap(procMapGetIATU, pid, module, unsafe.Pointer(&m)); err != nil {
		return nil, err
	}

	// Rows are only laid out as vmmMapIATEntry for the known version
	var rows []provider.SymbolRow
	if m.dwVersion == provider.ImportMapVersion {
		entries := unsafe.Slice((*vmmMapIATEntry)(unsafe.Add(unsafe.Pointer(m), unsafe.Sizeof(*m))), m.cMap)
		rows = make([]provider.SymbolRow, len(entries))
		for i := range entries {
			rows[i] = provider.SymbolRow{Name: cstring(entries[i].uszFunction), Address: provider.Address(entries[i].vaFunction)}
		}
	}
	return &nativeMap{ptr: unsafe.Pointer(m), version: m.dwVersion, rows: rows}, nil
}

func (v *VMM) getMap(proc *windows.LazyProc, pid provider.ProcessID, module string, out unsafe.Pointer) error {
	h, ok := v.acquire()
	if !ok {
		return provider.ErrClosed
	}
	defer v.mu.RUnlock()

	cname, err := windows.BytePtrFromString(module)
	if err != nil {
		return err
	}
	ret, _, _ := proc.Call(h, uintptr(pid), uintptr(unsafe.Pointer(cname)), uintptr(out))
	if ret == 0 {
		return fmt.Errorf("%s failed for %s in pid %d: %w", proc.Name, module, pid, provider.ErrModuleNotFound)
	}
	return nil
}

// nativeMap is a table allocated by vmm.dll. Row names point into it.
type nativeMap struct {
	ptr     unsafe.Pointer
	version uint32
	rows    []provider.SymbolRow
}

func (m *nativeMap) Version() uint32 { return m.version }

func (m *nativeMap) Len() int { return len(m.rows) }

func (m *nativeMap) Row(i int) provider.SymbolRow { return m.rows[i] }

func (m *nativeMap) Release() {
	if m.ptr != nil {
		procMemFree.Call(uintptr(m.ptr))
		m.ptr = nil
		m.rows = nil
	}
}

// cstring views a NUL-terminated string in native memory without copying
func cstring(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return unsafe.String(p, n)
}
