package memory_map

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// MemoryMapItem represents a mapped region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint64 // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Offset  uint64 // Offset of the mapping within Path
	Path    string // Backing file, empty for anonymous mappings
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Offset: %x, Path: %s",
		mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Offset, mmItem.Path)
}

// ModuleName returns the basename of the backing file, or "" for anonymous
// and pseudo mappings like [heap] and [stack].
func (mmItem MemoryMapItem) ModuleName() string {
	if mmItem.Path == "" || mmItem.Path[0] != '/' {
		return ""
	}
	return filepath.Base(strings.TrimSuffix(mmItem.Path, " (deleted)"))
}

// ParseMaps parses the /proc/[pid]/maps format. Malformed lines are skipped.
// The result is sorted by address.
func ParseMaps(r io.Reader) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// address perms offset dev inode [path]
		fields := strings.SplitN(scanner.Text(), " ", 6)
		if len(fields) < 5 {
			continue
		}

		addrRange := strings.Split(fields[0], "-")
		if len(addrRange) != 2 {
			continue
		}

		startAddr, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}

		endAddr, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil || endAddr < startAddr {
			continue
		}

		offset, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			continue
		}

		var path string
		if len(fields) == 6 {
			path = strings.TrimSpace(fields[5])
		}

		memoryMap = append(memoryMap, MemoryMapItem{
			Address: startAddr,
			Size:    endAddr - startAddr,
			Perms:   fields[1],
			Offset:  offset,
			Path:    path,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})

	return memoryMap, nil
}

// FindModule returns the lowest mapping of the named module, matched on the
// basename of its backing file. The memory map must be sorted by address.
func FindModule(name string, memoryMap []MemoryMapItem) *MemoryMapItem {
	if name == "" {
		return nil
	}
	for i := range memoryMap {
		if memoryMap[i].ModuleName() == name {
			return &memoryMap[i]
		}
	}
	return nil
}

// ModuleBase returns the load base of the named module: the lowest mapping
// minus its file offset. Zero means the module is not mapped.
func ModuleBase(name string, memoryMap []MemoryMapItem) uint64 {
	item := FindModule(name, memoryMap)
	if item == nil || item.Offset > item.Address {
		return 0
	}
	return item.Address - item.Offset
}
