package memstream

import (
	"reflect"
	"strings"

	"memstream/provider"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Session binds operations to one provider.
//
// The session borrows the provider and never closes it. Processes resolved
// through a session are only valid while the provider stays open; keeping
// that true is the caller's job.
type Session struct {
	provider  provider.Provider
	log       *logger.Logger
	nameMatch func(candidate, name string) bool
}

// Option configures a Session
type Option func(*Session)

// WithLogger replaces the session logger
func WithLogger(log *logger.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithNameMatcher sets the comparison GetAllProcesses uses between a
// process's long name and the requested name. The default is exact equality.
func WithNameMatcher(match func(candidate, name string) bool) Option {
	return func(s *Session) {
		if match != nil {
			s.nameMatch = match
		}
	}
}

// WithCaseInsensitiveNames makes GetAllProcesses compare names with
// strings.EqualFold. GetProcess still uses the provider's own index.
func WithCaseInsensitiveNames() Option {
	return WithNameMatcher(strings.EqualFold)
}

// NewSession creates a session over p. A nil p, including a nil pointer
// wrapped in the interface, leaves the session uninitialized.
func NewSession(p provider.Provider, opts ...Option) *Session {
	if isNilProvider(p) {
		p = nil
	}
	s := &Session{
		provider:  p,
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "memstream")),
		nameMatch: exactMatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the borrowed provider
func (s *Session) Provider() provider.Provider {
	if s == nil {
		return nil
	}
	return s.provider
}

func (s *Session) ready() error {
	if s == nil || s.provider == nil {
		return ErrUninitializedContext
	}
	return nil
}

func isNilProvider(p provider.Provider) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func exactMatch(candidate, name string) bool {
	return candidate == name
}
