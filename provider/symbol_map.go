package provider

// Table layout versions memstream understands. A map carrying another version
// must not be parsed.
const (
	ExportMapVersion uint32 = 3
	ImportMapVersion uint32 = 2
)

// SymbolRow is one row of an export or import table.
//
// Name may alias memory owned by the SymbolMap and is only valid until Release.
type SymbolRow struct {
	Name    string
	Address Address
}

// SymbolMap is a provider-owned, versioned symbol table.
type SymbolMap interface {
	// Version returns the layout version the table was produced with
	Version() uint32

	// Len returns the number of rows
	Len() int

	// Row returns row i in the provider's native order
	Row(i int) SymbolRow

	// Release frees provider-owned storage. Rows must not be used afterwards.
	Release()
}

// SliceMap is a SymbolMap over Go memory, used by providers that build their
// tables in-process.
type SliceMap struct {
	version uint32
	rows    []SymbolRow
}

// NewSliceMap creates a SymbolMap stamped with version
func NewSliceMap(version uint32, rows []SymbolRow) *SliceMap {
	return &SliceMap{version: version, rows: rows}
}

func (m *SliceMap) Version() uint32 { return m.version }

func (m *SliceMap) Len() int { return len(m.rows) }

func (m *SliceMap) Row(i int) SymbolRow { return m.rows[i] }

func (m *SliceMap) Release() { m.rows = nil }
