//go:build linux

package main

import (
	"fmt"

	"memstream/config"
	"memstream/provider"
	"memstream/provider_procfs"
)

func openLiveProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderProcFS:
		return provider_procfs.New(), nil
	default:
		return nil, fmt.Errorf("provider %q is not available on linux", cfg.Provider)
	}
}
