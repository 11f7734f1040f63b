package elfrange

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// buildELF assembles a minimal little-endian 32-bit ELF with one PT_LOAD
// program header per segSpec, enough for the elf package to parse and for
// Paginate to exercise. It deliberately avoids section headers since the
// paginator never looks at them.
type segSpec struct {
	paddr   uint32
	vaddr   uint32
	filesz  uint32
	memsz   uint32
	content []byte
}

func buildELF(segs []segSpec) []byte {
	const ehdrSize = 52
	const phdrSize = 32

	phOff := uint32(ehdrSize)
	dataOff := phOff + phdrSize*uint32(len(segs))

	var buf bytes.Buffer

	// e_ident
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 1, 1, 1, 0})
	buf.Write(make([]byte, 8))

	le := binary.LittleEndian
	write16 := func(v uint16) { _ = binary.Write(&buf, le, v) }
	write32 := func(v uint32) { _ = binary.Write(&buf, le, v) }

	write16(uint16(elf.ET_EXEC))    // e_type
	write16(uint16(elf.EM_ARM))     // e_machine
	write32(uint32(elf.EV_CURRENT)) // e_version
	write32(0)                      // e_entry
	write32(phOff)                  // e_phoff
	write32(0)                      // e_shoff
	write32(0)                      // e_flags
	write16(ehdrSize)               // e_ehsize
	write16(phdrSize)               // e_phentsize
	write16(uint16(len(segs)))      // e_phnum
	write16(0)                      // e_shentsize
	write16(0)                      // e_shnum
	write16(0)                      // e_shstrndx

	offsets := make([]uint32, len(segs))
	cur := dataOff
	for i, s := range segs {
		offsets[i] = cur
		cur += uint32(len(s.content))
	}

	for i, s := range segs {
		write32(uint32(elf.PT_LOAD)) // p_type
		write32(offsets[i])          // p_offset
		write32(s.vaddr)             // p_vaddr
		write32(s.paddr)             // p_paddr
		write32(s.filesz)            // p_filesz
		write32(s.memsz)             // p_memsz
		write32(6)                   // p_flags (RW)
		write32(0x1000)              // p_align
	}

	for _, s := range segs {
		buf.Write(s.content)
	}

	return buf.Bytes()
}
