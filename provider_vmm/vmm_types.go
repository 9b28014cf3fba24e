package provider_vmm

// Layouts of the vmmdll.h structures this package reads. They must match
// the DLL exactly; the version fields guard against drift.

const (
	processInformationMagic   uint64 = 0xc0ffee663df9301e
	processInformationVersion uint16 = 7
)

type vmmProcessInformation struct {
	magic         uint64
	wVersion      uint16
	wSize         uint16
	tpMemoryModel uint32
	tpSystem      uint32
	fUserOnly     int32
	dwPID         uint32
	dwPPID        uint32
	dwState       uint32
	szName        [16]byte
	szNameLong    [64]byte
	paDTB         uint64
	paDTBUserOpt  uint64
	win           struct {
		vaEPROCESS     uint64
		vaPEB          uint64
		_              uint64
		fWow64         int32
		vaPEB32        uint32
		dwSessionID    uint32
		qwLUID         uint64
		szSID          [260]byte
		integrityLevel uint32
	}
}

type vmmMapEAT struct {
	dwVersion                   uint32
	dwOrdinalBase               uint32
	cNumberOfNames              uint32
	cNumberOfFunctions          uint32
	cNumberOfForwardedFunctions uint32
	_                           [3]uint32
	vaModuleBase                uint64
	vaAddressOfFunctions        uint64
	vaAddressOfNames            uint64
	pbMultiText                 *byte
	cbMultiText                 uint32
	cMap                        uint32
	// followed by cMap vmmMapEATEntry
}

type vmmMapEATEntry struct {
	vaFunction           uint64
	dwOrdinal            uint32
	oFunctionsArray      uint32
	oNamesArray          uint32
	_                    uint32
	uszFunction          *byte
	uszForwardedFunction *byte
}

type vmmMapIAT struct {
	dwVersion    uint32
	_            [5]uint32
	vaModuleBase uint64
	pbMultiText  *byte
	cbMultiText  uint32
	cMap         uint32
	// followed by cMap vmmMapIATEntry
}

type vmmMapIATEntry struct {
	vaFunction  uint64
	uszFunction *byte
	_           uint32
	_           uint32
	uszModule   *byte
	thunk       struct {
		f32                   int32
		wHint                 uint16
		_                     uint16
		rvaFirstThunk         uint32
		rvaOriginalFirstThunk uint32
		rvaNameModule         uint32
		rvaNameFunction       uint32
	}
}
