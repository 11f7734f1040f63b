package elfrange

import (
	"debug/elf"
	"fmt"
	"io"
	"sort"
)

// PageFragment describes one contiguous slice of ELF file bytes that lands
// at a specific offset inside exactly one target page.
type PageFragment struct {
	FileOffset uint64
	PageOffset uint64
	Bytes      uint64
}

// PageMap maps a page-aligned target address to the ordered fragments that
// make up that page. An entry with a nil/empty fragment slice means
// "zero-filled page".
type PageMap map[uint64][]PageFragment

// SortedAddrs returns the PageMap's keys in strictly ascending order.
func (m PageMap) SortedAddrs() []uint64 {
	addrs := make([]uint64, 0, len(m))
	for addr := range m {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// min64 and not using the generic min to keep this readable at call sites
// operating on mixed uint64 arithmetic.
func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Paginate parses elfBytes, derives its address ranges, and walks every
// loadable segment into page-keyed fragment lists. pageSize must be a power
// of two no larger than 476 (the UF2 payload size).
func Paginate(elfBytes io.ReaderAt, pageSize uint32) (PageMap, error) {
	f, err := elf.NewFile(elfBytes)
	if err != nil {
		return nil, newError(ErrCodeElfParse, "failed to parse ELF", err.Error())
	}

	ranges, err := FromELFSegments(f)
	if err != nil {
		return nil, err
	}

	pages := make(PageMap)

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}

		mappedSize := min64(prog.Filesz, prog.Memsz)
		if mappedSize == 0 {
			continue
		}

		ar, err := Check(ranges, prog.Paddr, mappedSize, false)
		if err != nil {
			return nil, err
		}
		if ar.Kind != Contents {
			continue
		}

		addr := prog.Paddr
		remaining := mappedSize
		fileOffset := prog.Off

		for remaining > 0 {
			off := addr & uint64(pageSize-1)
			length := min64(remaining, uint64(pageSize)-off)

			pageAddr := addr - off
			fragments := pages[pageAddr]

			for _, frag := range fragments {
				if max64(off, frag.PageOffset) < min64(off+length, frag.PageOffset+frag.Bytes) {
					return nil, ErrInMemorySegmentsOverlap
				}
			}

			fragments = append(fragments, PageFragment{
				FileOffset: fileOffset,
				PageOffset: off,
				Bytes:      length,
			})
			pages[pageAddr] = fragments

			addr += length
			fileOffset += length
			remaining -= length
		}

		if prog.Memsz > prog.Filesz {
			if _, err := Check(ranges, prog.Paddr+prog.Filesz, prog.Memsz-prog.Filesz, true); err != nil {
				return nil, err
			}
		}
	}

	return pages, nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// RealizePage zero-fills buf (which must be at least pageSize bytes) and
// then reads each fragment's bytes from input at FileOffset into
// buf[PageOffset:PageOffset+Bytes].
func RealizePage(input io.ReaderAt, fragments []PageFragment, buf []byte, pageSize uint32) error {
	if uint32(len(buf)) < pageSize {
		return fmt.Errorf("elfrange: buffer too small for page size %d", pageSize)
	}
	for i := range buf {
		buf[i] = 0
	}

	for _, frag := range fragments {
		if frag.PageOffset >= uint64(pageSize) || frag.PageOffset+frag.Bytes > uint64(pageSize) {
			return fmt.Errorf("elfrange: fragment out of page bounds (offset=%d bytes=%d pageSize=%d)",
				frag.PageOffset, frag.Bytes, pageSize)
		}
		dst := buf[frag.PageOffset : frag.PageOffset+frag.Bytes]
		n, err := input.ReadAt(dst, int64(frag.FileOffset))
		if err != nil && err != io.EOF {
			return err
		}
		if uint64(n) != frag.Bytes {
			return fmt.Errorf("elfrange: short read realizing page fragment: got %d want %d", n, frag.Bytes)
		}
	}

	return nil
}
