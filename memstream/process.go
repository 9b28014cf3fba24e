package memstream

import (
	"fmt"

	"memstream/provider"

	"github.com/colega/zeropool"
)

// Process is one resolved process.
//
// It holds a non-owning reference to the Session that resolved it and must
// not be used after that session's provider is closed.
type Process struct {
	pid     provider.ProcessID
	session *Session
}

// PID returns the process identifier
func (p *Process) PID() provider.ProcessID {
	return p.pid
}

// Session returns the session the process was resolved through
func (p *Process) Session() *Session {
	return p.session
}

func (p *Process) String() string {
	return fmt.Sprintf("process-%d", p.pid)
}

func (p *Process) ready() error {
	if p == nil || p.session == nil {
		return ErrUninitializedContext
	}
	return p.session.ready()
}

// ProcessList is an ordered list of processes in provider scan order
type ProcessList []*Process

// PIDs returns the identifiers of the list in order
func (l ProcessList) PIDs() []provider.ProcessID {
	pids := make([]provider.ProcessID, len(l))
	for i, p := range l {
		pids[i] = p.pid
	}
	return pids
}

// Scratch buffers for the two-phase pid query
var pidSlicePool zeropool.Pool[[]provider.ProcessID]

// GetProcess returns the first process the provider resolves for name.
// Which process wins when several share a name is provider-defined.
func (s *Session) GetProcess(name string) (*Process, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty process name", ErrInvalidArgument)
	}

	pid, err := s.provider.PidFromName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: process %q: %v", ErrResolutionFailed, name, err)
	}

	return &Process{pid: pid, session: s}, nil
}

// GetAllProcesses returns every process whose long name matches name, in
// scan order. No match is an empty list and a nil error. Processes whose
// metadata cannot be read are skipped.
func (s *Session) GetAllProcesses(name string) (ProcessList, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty process name", ErrInvalidArgument)
	}

	count, err := s.provider.PidList(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: pid list size: %v", ErrResolutionFailed, err)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: pid list size %d", ErrResolutionFailed, count)
	}

	list := ProcessList{}
	if count == 0 {
		return list, nil
	}

	pids := pidSlicePool.Get()
	if cap(pids) < count {
		pids = make([]provider.ProcessID, count)
	}
	pids = pids[:count]
	defer func() {
		pidSlicePool.Put(pids)
	}()

	n, err := s.provider.PidList(pids)
	if err != nil {
		return nil, fmt.Errorf("%w: pid list: %v", ErrResolutionFailed, err)
	}
	if n < 0 || n > len(pids) {
		return nil, fmt.Errorf("%w: pid list filled %d of %d", ErrResolutionFailed, n, len(pids))
	}

	for _, pid := range pids[:n] {
		info, err := s.provider.ProcessInformation(pid)
		if err != nil {
			s.log.Debugln("Skipping process", pid, ":", err)
			continue
		}

		if s.nameMatch(info.NameLong, name) {
			list = append(list, &Process{pid: pid, session: s})
		}
	}

	return list, nil
}
