//go:build !linux && !windows

package main

import (
	"fmt"

	"memstream/config"
	"memstream/provider"
)

func openLiveProvider(cfg *config.Config) (provider.Provider, error) {
	return nil, fmt.Errorf("provider %q is not available on this platform", cfg.Provider)
}
