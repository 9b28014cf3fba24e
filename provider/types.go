package provider

import (
	"fmt"
	"strconv"
)

// ProcessID represents a unique identifier for a process
type ProcessID uint32

// Address represents a virtual address within a process
type Address uint64

func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// ProcessInformation contains provider metadata about a process
type ProcessInformation struct {
	PID      ProcessID `json:"pid" yaml:"pid"`
	PPID     ProcessID `json:"ppid" yaml:"ppid"`
	Name     string    `json:"name" yaml:"name"`           // Short name, may be truncated by the provider
	NameLong string    `json:"name_long" yaml:"name_long"` // Full display name used for matching
	Path     string    `json:"path,omitempty" yaml:"path,omitempty"`
}

// MarshalText encodes the address as 0x-prefixed hex
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts decimal or 0x-prefixed hex
func (a *Address) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", text, err)
	}
	*a = Address(v)
	return nil
}
