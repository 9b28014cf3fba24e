package provider_snapshot

import (
	"fmt"
	"strings"

	"memstream/provider"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Capture copies the processes of a live provider into a snapshot, together
// with the base and tables of each named module that is loaded. Processes
// whose metadata cannot be read are skipped, as are tables the provider
// cannot produce or that carry an unknown layout version.
func Capture(src provider.Provider, modules ...string) (*Snapshot, error) {
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "snapshot-capture"))

	count, err := src.PidList(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to size pid list: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid pid list size %d", count)
	}

	pids := make([]provider.ProcessID, count)
	n, err := src.PidList(pids)
	if err != nil {
		return nil, fmt.Errorf("failed to read pid list: %w", err)
	}
	if n < 0 || n > len(pids) {
		return nil, fmt.Errorf("pid list reported %d entries for a buffer of %d", n, len(pids))
	}

	s := New()
	savedCount, skippedCount := 0, 0
	for _, pid := range pids[:n] {
		info, err := src.ProcessInformation(pid)
		if err != nil {
			log.Debugln("Skipping process", pid, ":", err)
			skippedCount++
			continue
		}

		var captured []Module
		for _, name := range modules {
			base := src.ModuleBase(pid, name)
			if base == 0 {
				continue
			}

			m := Module{Name: name, Base: base}
			m.Exports = captureTable(log, pid, name, provider.ExportMapVersion, src.ExportMap)
			m.Imports = captureTable(log, pid, name, provider.ImportMapVersion, src.ImportMap)
			captured = append(captured, m)
		}

		s.Add(*info, captured...)
		savedCount++
	}

	log.Infoln("Snapshot captured:", savedCount, "processes,", skippedCount, "skipped")
	return s, nil
}

func captureTable(log *logger.Logger, pid provider.ProcessID, module string, version uint32,
	get func(provider.ProcessID, string) (provider.SymbolMap, error)) []Symbol {
	m, err := get(pid, module)
	if err != nil {
		log.Debugln("No table for", module, "in process", pid, ":", err)
		return nil
	}
	defer m.Release()

	if m.Version() != version {
		log.Warn("Skipping table for ", module, " in process ", pid, ": version ", m.Version())
		return nil
	}

	symbols := make([]Symbol, m.Len())
	for i := range symbols {
		row := m.Row(i)
		symbols[i] = Symbol{Name: strings.Clone(row.Name), Address: row.Address}
	}
	return symbols
}
