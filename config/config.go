// Package config loads memstream CLI settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider names
const (
	ProviderProcFS   = "procfs"
	ProviderVMM      = "vmm"
	ProviderSnapshot = "snapshot"
)

// Environment overrides applied after the file
const (
	EnvProvider   = "MEMSTREAM_PROVIDER"
	EnvSnapshot   = "MEMSTREAM_SNAPSHOT"
	EnvVMMArgs    = "MEMSTREAM_VMM_ARGS"
	EnvIgnoreCase = "MEMSTREAM_IGNORE_CASE"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config selects and configures the provider
type Config struct {
	Provider   string   `yaml:"provider"`
	Snapshot   string   `yaml:"snapshot,omitempty"`
	VMMArgs    []string `yaml:"vmm_args,omitempty"`
	IgnoreCase bool     `yaml:"ignore_case"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{Provider: ProviderProcFS}
	if runtime.GOOS == "windows" {
		cfg.Provider = ProviderVMM
		cfg.VMMArgs = []string{"-device", "fpga"}
	}
	return cfg
}

// Load reads filename over the defaults and applies environment overrides.
// An empty filename skips the file. The result is not validated so callers
// can layer further overrides before calling Validate.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", filename, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvSnapshot); v != "" {
		c.Snapshot = v
	}
	if v := os.Getenv(EnvVMMArgs); v != "" {
		c.VMMArgs = strings.Fields(v)
	}
	if v := os.Getenv(EnvIgnoreCase); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvIgnoreCase, v, err)
		}
		c.IgnoreCase = b
	}
	return nil
}

// Validate checks that the selected provider has what it needs
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderProcFS, ProviderVMM:
	case ProviderSnapshot:
		if c.Snapshot == "" {
			return fmt.Errorf("%w: snapshot provider needs a snapshot file", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	return nil
}
