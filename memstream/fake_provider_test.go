package memstream

import (
	"errors"
	"unsafe"

	"memstream/provider"
)

var errFake = errors.New("fake provider failure")

type fakeModule struct {
	base          provider.Address
	exports       []provider.SymbolRow
	imports       []provider.SymbolRow
	exportVersion uint32
	importVersion uint32
}

// fakeProvider is an in-memory provider with failure injection
type fakeProvider struct {
	pids      []provider.ProcessID
	names     map[provider.ProcessID]string
	modules   map[provider.ProcessID]map[string]*fakeModule
	badInfo   map[provider.ProcessID]bool
	sizeErr   error
	fillErr   error
	mapErr    error
	released  int
	infoCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		names:   map[provider.ProcessID]string{},
		modules: map[provider.ProcessID]map[string]*fakeModule{},
		badInfo: map[provider.ProcessID]bool{},
	}
}

func (f *fakeProvider) addProcess(pid provider.ProcessID, name string) {
	f.pids = append(f.pids, pid)
	f.names[pid] = name
}

func (f *fakeProvider) addModule(pid provider.ProcessID, name string, m *fakeModule) {
	if f.modules[pid] == nil {
		f.modules[pid] = map[string]*fakeModule{}
	}
	if m.exportVersion == 0 {
		m.exportVersion = provider.ExportMapVersion
	}
	if m.importVersion == 0 {
		m.importVersion = provider.ImportMapVersion
	}
	f.modules[pid][name] = m
}

func (f *fakeProvider) PidFromName(name string) (provider.ProcessID, error) {
	for _, pid := range f.pids {
		if f.names[pid] == name {
			return pid, nil
		}
	}
	return 0, provider.ErrProcessNotFound
}

func (f *fakeProvider) PidList(pids []provider.ProcessID) (int, error) {
	if pids == nil {
		if f.sizeErr != nil {
			return 0, f.sizeErr
		}
		return len(f.pids), nil
	}
	if f.fillErr != nil {
		return 0, f.fillErr
	}
	if len(pids) < len(f.pids) {
		return 0, provider.ErrBufferTooSmall
	}
	return copy(pids, f.pids), nil
}

func (f *fakeProvider) ProcessInformation(pid provider.ProcessID) (*provider.ProcessInformation, error) {
	f.infoCalls++
	if f.badInfo[pid] {
		return nil, errFake
	}
	name, ok := f.names[pid]
	if !ok {
		return nil, provider.ErrProcessNotFound
	}
	return &provider.ProcessInformation{PID: pid, Name: name, NameLong: name}, nil
}

func (f *fakeProvider) ModuleBase(pid provider.ProcessID, module string) provider.Address {
	if m, ok := f.modules[pid][module]; ok {
		return m.base
	}
	return 0
}

func (f *fakeProvider) ExportMap(pid provider.ProcessID, module string) (provider.SymbolMap, error) {
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	m, ok := f.modules[pid][module]
	if !ok {
		return nil, provider.ErrModuleNotFound
	}
	return f.newMap(m.exportVersion, m.exports), nil
}

func (f *fakeProvider) ImportMap(pid provider.ProcessID, module string) (provider.SymbolMap, error) {
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	m, ok := f.modules[pid][module]
	if !ok {
		return nil, provider.ErrModuleNotFound
	}
	return f.newMap(m.importVersion, m.imports), nil
}

// fakeMap keeps all row names in one buffer and hands out string views into
// it, the way a native provider hands out pointers into its allocation.
// Release scribbles over the buffer.
type fakeMap struct {
	owner   *fakeProvider
	version uint32
	text    []byte
	spans   [][2]int
	addrs   []provider.Address
}

func (f *fakeProvider) newMap(version uint32, rows []provider.SymbolRow) *fakeMap {
	m := &fakeMap{owner: f, version: version}
	for _, row := range rows {
		start := len(m.text)
		m.text = append(m.text, row.Name...)
		m.spans = append(m.spans, [2]int{start, len(m.text)})
		m.addrs = append(m.addrs, row.Address)
	}
	return m
}

func (m *fakeMap) Version() uint32 { return m.version }

func (m *fakeMap) Len() int { return len(m.spans) }

func (m *fakeMap) Row(i int) provider.SymbolRow {
	span := m.spans[i]
	var name string
	if span[1] > span[0] {
		name = unsafe.String(&m.text[span[0]], span[1]-span[0])
	}
	return provider.SymbolRow{Name: name, Address: m.addrs[i]}
}

func (m *fakeMap) Release() {
	for i := range m.text {
		m.text[i] = 'X'
	}
	m.owner.released++
}
