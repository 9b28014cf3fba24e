package memstream

import (
	"testing"

	"memstream/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanOrderProvider() *fakeProvider {
	f := newFakeProvider()
	f.addProcess(10, "a.exe")
	f.addProcess(11, "b.exe")
	f.addProcess(12, "a.exe")
	return f
}

func TestGetAllProcessesScanOrder(t *testing.T) {
	s := NewSession(scanOrderProvider())

	list, err := s.GetAllProcesses("a.exe")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []provider.ProcessID{10, 12}, list.PIDs())
	for _, p := range list {
		assert.Same(t, s, p.Session())
	}
	assert.NotSame(t, list[0], list[1])
}

func TestGetAllProcessesNoMatch(t *testing.T) {
	s := NewSession(scanOrderProvider())

	list, err := s.GetAllProcesses("c.exe")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestGetAllProcessesSkipsUnreadableMetadata(t *testing.T) {
	f := scanOrderProvider()
	f.badInfo[10] = true
	s := NewSession(f)

	list, err := s.GetAllProcesses("a.exe")
	require.NoError(t, err)
	assert.Equal(t, []provider.ProcessID{12}, list.PIDs())
	assert.Equal(t, 3, f.infoCalls)
}

func TestGetAllProcessesProviderFailures(t *testing.T) {
	f := scanOrderProvider()
	f.sizeErr = errFake
	_, err := NewSession(f).GetAllProcesses("a.exe")
	assert.ErrorIs(t, err, ErrResolutionFailed)

	f = scanOrderProvider()
	f.fillErr = errFake
	list, err := NewSession(f).GetAllProcesses("a.exe")
	assert.ErrorIs(t, err, ErrResolutionFailed)
	assert.Nil(t, list)
	assert.Zero(t, f.infoCalls)
}

func TestGetAllProcessesCaseInsensitive(t *testing.T) {
	f := newFakeProvider()
	f.addProcess(4, "Explorer.EXE")
	f.addProcess(5, "explorer.exe")

	list, err := NewSession(f).GetAllProcesses("explorer.exe")
	require.NoError(t, err)
	assert.Equal(t, []provider.ProcessID{5}, list.PIDs())

	list, err = NewSession(f, WithCaseInsensitiveNames()).GetAllProcesses("explorer.exe")
	require.NoError(t, err)
	assert.Equal(t, []provider.ProcessID{4, 5}, list.PIDs())
}

func TestGetProcess(t *testing.T) {
	s := NewSession(scanOrderProvider())

	p, err := s.GetProcess("b.exe")
	require.NoError(t, err)
	assert.Equal(t, provider.ProcessID(11), p.PID())
	assert.Same(t, s, p.Session())

	p, err = s.GetProcess("missing.exe")
	assert.ErrorIs(t, err, ErrResolutionFailed)
	assert.Nil(t, p)
}

func TestGetProcessAgreesWithGetAllProcesses(t *testing.T) {
	s := NewSession(scanOrderProvider())

	one, err := s.GetProcess("b.exe")
	require.NoError(t, err)
	all, err := s.GetAllProcesses("b.exe")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, one.PID(), all[0].PID())
}

func TestResolverArguments(t *testing.T) {
	var nilSession *Session

	_, err := nilSession.GetProcess("a.exe")
	assert.ErrorIs(t, err, ErrUninitializedContext)
	_, err = nilSession.GetAllProcesses("a.exe")
	assert.ErrorIs(t, err, ErrUninitializedContext)

	_, err = NewSession(nil).GetProcess("a.exe")
	assert.ErrorIs(t, err, ErrUninitializedContext)
	_, err = NewSession(nil).GetAllProcesses("a.exe")
	assert.ErrorIs(t, err, ErrUninitializedContext)

	typedNil := NewSession((*fakeProvider)(nil))
	assert.Nil(t, typedNil.Provider())
	_, err = typedNil.GetProcess("a.exe")
	assert.ErrorIs(t, err, ErrUninitializedContext)
	_, err = typedNil.GetAllProcesses("a.exe")
	assert.ErrorIs(t, err, ErrUninitializedContext)
	_, err = (&Process{pid: 10, session: typedNil}).ModuleBase("kernel32.dll")
	assert.ErrorIs(t, err, ErrUninitializedContext)

	f := scanOrderProvider()
	_, err = NewSession(f).GetProcess("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewSession(f).GetAllProcesses("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, f.infoCalls)
}
