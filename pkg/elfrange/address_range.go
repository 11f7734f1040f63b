// Package elfrange derives address-range classifications from an ELF's
// loadable segments and paginates those segments into page-keyed fragment
// lists suitable for UF2 encoding.
package elfrange

import "debug/elf"

// Kind classifies a physical address range.
type Kind int

const (
	// Contents marks a range where initialized file bytes are permitted.
	Contents Kind = iota
	// NoContents marks a range that must stay uninitialized (BSS).
	NoContents
	// Ignore marks a range the paginator should skip entirely.
	Ignore
)

func (k Kind) String() string {
	switch k {
	case Contents:
		return "Contents"
	case NoContents:
		return "NoContents"
	default:
		return "Ignore"
	}
}

// AddressRange is a half-open interval [From, To) in 64-bit physical
// address space, tagged with a Kind.
type AddressRange struct {
	Kind Kind
	From uint64
	To   uint64
}

// FromELFSegments derives one AddressRange per PT_LOAD segment: a Contents
// range over the file-backed bytes, and — when the segment's memory size
// exceeds its file size — a NoContents range over the BSS tail.
func FromELFSegments(f *elf.File) ([]AddressRange, error) {
	if len(f.Progs) == 0 {
		return nil, ErrNoSegments
	}

	var ranges []AddressRange

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}

		start := prog.Paddr
		end := start + prog.Memsz

		if prog.Filesz > 0 {
			ranges = append(ranges, AddressRange{
				Kind: Contents,
				From: start,
				To:   start + prog.Filesz,
			})
		}

		if prog.Memsz > prog.Filesz {
			ranges = append(ranges, AddressRange{
				Kind: NoContents,
				From: start + prog.Filesz,
				To:   end,
			})
		}
	}

	return ranges, nil
}

// Check finds the range that fully contains [addr, addr+size). If the
// covering range is NoContents and uninitialized is false, it fails with
// MemoryContentsForUninitializedMemory. If no range covers the request, it
// fails with MemorySegmentInvalidForDevice.
func Check(ranges []AddressRange, addr, size uint64, uninitialized bool) (AddressRange, error) {
	for _, r := range ranges {
		if r.From <= addr && r.To >= addr+size {
			if r.Kind == NoContents && !uninitialized {
				return AddressRange{}, MemoryContentsForUninitializedMemory(addr)
			}
			return r, nil
		}
	}
	return AddressRange{}, MemorySegmentInvalidForDevice(addr, addr+size)
}
