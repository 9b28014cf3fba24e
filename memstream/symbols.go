package memstream

import (
	"fmt"
	"strings"

	"memstream/provider"
)

// Symbol is one exported or imported routine
type Symbol struct {
	Name    string
	Address provider.Address
}

// SymbolList is a symbol table in provider row order
type SymbolList []Symbol

// Lookup returns the first symbol named name
func (l SymbolList) Lookup(name string) (Symbol, bool) {
	for _, sym := range l {
		if sym.Name == name {
			return sym, true
		}
	}
	return Symbol{}, false
}

// Exports returns the export address table of the named module
func (p *Process) Exports(name string) (SymbolList, error) {
	return p.symbolTable("export", name, provider.ExportMapVersion, provider.Provider.ExportMap)
}

// Imports returns the import address table of the named module
func (p *Process) Imports(name string) (SymbolList, error) {
	return p.symbolTable("import", name, provider.ImportMapVersion, provider.Provider.ImportMap)
}

type mapFunc func(provider.Provider, provider.ProcessID, string) (provider.SymbolMap, error)

func (p *Process) symbolTable(kind, name string, version uint32, get mapFunc) (SymbolList, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty module name", ErrInvalidArgument)
	}

	m, err := get(p.session.provider, p.pid, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s table of %q in %s: %v", ErrResolutionFailed, kind, name, p, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s table of %q in %s: no map", ErrResolutionFailed, kind, name, p)
	}
	defer m.Release()

	if m.Version() != version {
		p.session.log.Debugln("Rejecting", kind, "table of", name, "version", m.Version(), "want", version)
		return nil, fmt.Errorf("%w: %s table of %q: version %d, want %d", ErrResolutionFailed, kind, name, m.Version(), version)
	}

	list := make(SymbolList, 0, m.Len())
	for i := 0; i < m.Len(); i++ {
		row := m.Row(i)
		// Row names may point into the map
		list = append(list, Symbol{
			Name:    strings.Clone(row.Name),
			Address: row.Address,
		})
	}

	return list, nil
}
