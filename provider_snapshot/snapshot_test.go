package provider_snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"memstream/memstream"
	"memstream/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `processes:
  - pid: 10
    name: a.exe
    name_long: a.exe
    modules:
      - name: kernel32.dll
        base: 0x7ffb10000000
        exports:
          - name: CreateFileW
            address: 0x7ffb10012340
          - name: ReadFile
            address: 0x7ffb10012a00
        imports: []
  - pid: 11
    name: b.exe
    name_long: b.exe
  - pid: 12
    name: a.exe
    name_long: a.exe
    modules:
      - name: old.dll
        base: 0x180000000
        export_version: 1
        exports:
          - name: Legacy
            address: 0x180001000
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestLoadYAML(t *testing.T) {
	s, err := Load(writeFile(t, "snap.yaml", sampleYAML))
	require.NoError(t, err)
	require.Len(t, s.Processes, 3)

	n, err := s.PidList(nil)
	require.NoError(t, err)
	pids := make([]provider.ProcessID, n)
	n, err = s.PidList(pids)
	require.NoError(t, err)
	assert.Equal(t, []provider.ProcessID{10, 11, 12}, pids[:n])

	_, err = s.PidList(make([]provider.ProcessID, 1))
	assert.ErrorIs(t, err, provider.ErrBufferTooSmall)

	pid, err := s.PidFromName("a.exe")
	require.NoError(t, err)
	assert.Equal(t, provider.ProcessID(10), pid)

	_, err = s.PidFromName("c.exe")
	assert.ErrorIs(t, err, provider.ErrProcessNotFound)

	assert.Equal(t, provider.Address(0x7ffb10000000), s.ModuleBase(10, "kernel32.dll"))
	assert.Zero(t, s.ModuleBase(11, "kernel32.dll"))
	assert.Zero(t, s.ModuleBase(99, "kernel32.dll"))
}

func TestSessionOverSnapshot(t *testing.T) {
	s, err := Load(writeFile(t, "snap.yml", sampleYAML))
	require.NoError(t, err)
	session := memstream.NewSession(s)

	list, err := session.GetAllProcesses("a.exe")
	require.NoError(t, err)
	assert.Equal(t, []provider.ProcessID{10, 12}, list.PIDs())

	exports, err := list[0].Exports("kernel32.dll")
	require.NoError(t, err)
	assert.Equal(t, memstream.SymbolList{
		{Name: "CreateFileW", Address: 0x7ffb10012340},
		{Name: "ReadFile", Address: 0x7ffb10012a00},
	}, exports)

	imports, err := list[0].Imports("kernel32.dll")
	require.NoError(t, err)
	assert.Empty(t, imports)

	_, err = list[1].Exports("old.dll")
	assert.ErrorIs(t, err, memstream.ErrResolutionFailed)

	_, err = list[1].ModuleBase("kernel32.dll")
	assert.ErrorIs(t, err, memstream.ErrResolutionFailed)
}

func TestSaveAndLoadJSON(t *testing.T) {
	s := New()
	s.Add(provider.ProcessInformation{PID: 7, Name: "svc", NameLong: "svc.exe", Path: `C:\svc.exe`},
		Module{Name: "svc.exe", Base: 0x140000000, Exports: []Symbol{{Name: "ServiceMain", Address: 0x140001000}}})

	filename := filepath.Join(t.TempDir(), "nested", "snap.json")
	require.NoError(t, s.Save(filename))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"base": "0x140000000"`)
	assert.Contains(t, string(data), `"name_long": "svc.exe"`)

	loaded, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, s.Processes, loaded.Processes)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.json", "{"))
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	s, err := Load(writeFile(t, "snap.yaml", sampleYAML))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.PidList(nil)
	assert.ErrorIs(t, err, provider.ErrClosed)
	_, err = s.ExportMap(10, "kernel32.dll")
	assert.ErrorIs(t, err, provider.ErrClosed)
	_, err = s.PidFromName("a.exe")
	assert.ErrorIs(t, err, provider.ErrClosed)
}

func TestCapture(t *testing.T) {
	live, err := Load(writeFile(t, "snap.yaml", sampleYAML))
	require.NoError(t, err)

	captured, err := Capture(live, "kernel32.dll", "old.dll")
	require.NoError(t, err)
	require.Len(t, captured.Processes, 3)

	assert.Equal(t, "a.exe", captured.Processes[0].NameLong)
	require.Len(t, captured.Processes[0].Modules, 1)
	assert.Len(t, captured.Processes[0].Modules[0].Exports, 2)

	assert.Empty(t, captured.Processes[1].Modules)

	// the old.dll export table has an unknown version and is dropped
	require.Len(t, captured.Processes[2].Modules, 1)
	assert.Equal(t, provider.Address(0x180000000), captured.Processes[2].Modules[0].Base)
	assert.Nil(t, captured.Processes[2].Modules[0].Exports)
}

// lyingPidList reports pid list sizes that disagree with the buffer it fills
type lyingPidList struct {
	*Snapshot
	size, filled int
}

func (l *lyingPidList) PidList(pids []provider.ProcessID) (int, error) {
	if pids == nil {
		return l.size, nil
	}
	return l.filled, nil
}

func TestCaptureRejectsBadPidList(t *testing.T) {
	live, err := Load(writeFile(t, "snap.yaml", sampleYAML))
	require.NoError(t, err)

	_, err = Capture(&lyingPidList{Snapshot: live, size: -1})
	assert.Error(t, err)

	_, err = Capture(&lyingPidList{Snapshot: live, size: 2, filled: 5})
	assert.Error(t, err)

	_, err = Capture(&lyingPidList{Snapshot: live, size: 2, filled: -3})
	assert.Error(t, err)

	captured, err := Capture(&lyingPidList{Snapshot: live, size: 0, filled: 0})
	require.NoError(t, err)
	assert.Empty(t, captured.Processes)
}
