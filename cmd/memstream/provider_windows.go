//go:build windows

package main

import (
	"fmt"

	"memstream/config"
	"memstream/provider"
	"memstream/provider_vmm"
)

func openLiveProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderVMM:
		return provider_vmm.Open(cfg.VMMArgs...)
	default:
		return nil, fmt.Errorf("provider %q is not available on windows", cfg.Provider)
	}
}
