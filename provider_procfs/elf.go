package provider_procfs

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"memstream/provider"
)

// elfImage is an ELF file mapped at a known base
type elfImage struct {
	f    *elf.File
	bias provider.Address
}

func openELF(path string, base provider.Address) (*elfImage, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	return &elfImage{f: f, bias: loadBias(f, base)}, nil
}

func (img *elfImage) Close() error {
	return img.f.Close()
}

// loadBias is the difference between where the first PT_LOAD segment was
// mapped and where the file asked for it. Zero for fixed executables.
func loadBias(f *elf.File, base provider.Address) provider.Address {
	minVaddr := uint64(math.MaxUint64)
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_LOAD && prog.Vaddr < minVaddr {
			align := prog.Align
			if align == 0 {
				align = 1
			}
			minVaddr = prog.Vaddr &^ (align - 1)
		}
	}
	if minVaddr == math.MaxUint64 || uint64(base) < minVaddr {
		return base
	}
	return base - provider.Address(minVaddr)
}

func (img *elfImage) dynamicSymbols() ([]elf.Symbol, error) {
	syms, err := img.f.DynamicSymbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil, nil
	}
	return syms, err
}

func (img *elfImage) exports() ([]provider.SymbolRow, error) {
	syms, err := img.dynamicSymbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read dynamic symbols: %w", err)
	}

	rows := []provider.SymbolRow{}
	for _, sym := range syms {
		if sym.Section == elf.SHN_UNDEF || sym.Value == 0 || sym.Name == "" {
			continue
		}
		switch elf.ST_TYPE(sym.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT, elf.STT_LOOS: // STT_LOOS is STT_GNU_IFUNC
		default:
			continue
		}
		rows = append(rows, provider.SymbolRow{
			Name:    sym.Name,
			Address: img.bias + provider.Address(sym.Value),
		})
	}
	return rows, nil
}

func (img *elfImage) imports() ([]provider.SymbolRow, error) {
	syms, err := img.dynamicSymbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read dynamic symbols: %w", err)
	}

	rows := []provider.SymbolRow{}
	if len(syms) == 0 {
		return rows, nil
	}

	dynsym := img.f.SectionByType(elf.SHT_DYNSYM)
	for i, section := range img.f.Sections {
		if section.Type != elf.SHT_REL && section.Type != elf.SHT_RELA {
			continue
		}
		if dynsym == nil || int(section.Link) >= len(img.f.Sections) || img.f.Sections[section.Link] != dynsym {
			continue
		}

		data, err := section.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to read section %d: %w", i, err)
		}

		relocs, err := parseRelocations(data, img.f.Class, img.f.ByteOrder, section.Type == elf.SHT_RELA)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", section.Name, err)
		}

		rows = append(rows, img.slotImports(relocs, syms)...)
	}
	return rows, nil
}

// slotImports keeps relocations that fill a GOT or PLT slot with the address
// of an undefined symbol. Other relocation types against the same symbols
// patch code or data and name no import slot.
func (img *elfImage) slotImports(relocs []relocation, syms []elf.Symbol) []provider.SymbolRow {
	var rows []provider.SymbolRow
	for _, r := range relocs {
		if !isSlotRelocation(img.f.Machine, r.typ) {
			continue
		}
		// DynamicSymbols omits the null symbol at index 0
		if r.sym == 0 || int(r.sym) > len(syms) {
			continue
		}
		sym := syms[r.sym-1]
		if sym.Section != elf.SHN_UNDEF || sym.Name == "" {
			continue
		}
		rows = append(rows, provider.SymbolRow{
			Name:    sym.Name,
			Address: img.bias + provider.Address(r.offset),
		})
	}
	return rows
}

func isSlotRelocation(machine elf.Machine, typ uint32) bool {
	switch machine {
	case elf.EM_X86_64:
		t := elf.R_X86_64(typ)
		return t == elf.R_X86_64_JMP_SLOT || t == elf.R_X86_64_GLOB_DAT
	case elf.EM_386:
		t := elf.R_386(typ)
		return t == elf.R_386_JMP_SLOT || t == elf.R_386_GLOB_DAT
	case elf.EM_AARCH64:
		t := elf.R_AARCH64(typ)
		return t == elf.R_AARCH64_JUMP_SLOT || t == elf.R_AARCH64_GLOB_DAT
	case elf.EM_ARM:
		t := elf.R_ARM(typ)
		return t == elf.R_ARM_JUMP_SLOT || t == elf.R_ARM_GLOB_DAT
	}
	return false
}

type relocation struct {
	offset uint64
	sym    uint32
	typ    uint32
}

// parseRelocations decodes an SHT_REL or SHT_RELA section body
func parseRelocations(data []byte, class elf.Class, order binary.ByteOrder, rela bool) ([]relocation, error) {
	var size int
	switch {
	case class == elf.ELFCLASS64 && rela:
		size = 24
	case class == elf.ELFCLASS64:
		size = 16
	case class == elf.ELFCLASS32 && rela:
		size = 12
	case class == elf.ELFCLASS32:
		size = 8
	default:
		return nil, fmt.Errorf("unsupported ELF class %v", class)
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("relocation section size %d is not a multiple of %d", len(data), size)
	}

	relocs := make([]relocation, 0, len(data)/size)
	for off := 0; off < len(data); off += size {
		entry := data[off : off+size]
		if class == elf.ELFCLASS64 {
			relocs = append(relocs, relocation{
				offset: order.Uint64(entry[0:8]),
				sym:    elf.R_SYM64(order.Uint64(entry[8:16])),
				typ:    elf.R_TYPE64(order.Uint64(entry[8:16])),
			})
		} else {
			relocs = append(relocs, relocation{
				offset: uint64(order.Uint32(entry[0:4])),
				sym:    elf.R_SYM32(order.Uint32(entry[4:8])),
				typ:    elf.R_TYPE32(order.Uint32(entry[4:8])),
			})
		}
	}
	return relocs, nil
}
