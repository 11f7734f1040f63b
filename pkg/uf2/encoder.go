package uf2

import (
	"io"

	"uf2flash/pkg/elfrange"
)

// ProgressReporter receives byte-granular progress updates while encoding.
// Start is called once with the total byte count the encoder expects to
// emit; Advance is called once after each block is written, the final
// block included, before Encode returns; Finish is called exactly once at
// the end.
type ProgressReporter interface {
	Start(totalBytes int)
	Advance(bytes int)
	Finish()
}

// NoProgress is a ProgressReporter that does nothing, for callers that
// don't want progress tracking.
type NoProgress struct{}

func (NoProgress) Start(int)   {}
func (NoProgress) Advance(int) {}
func (NoProgress) Finish()     {}

// Encode walks pageMap in ascending address order, performs sector-coverage
// zero-fill for touched erase sectors, and writes the resulting UF2 block
// stream to out. input supplies the ELF bytes fragments are realized from.
//
// The final Advance call is issued before out is closed by the caller (the
// caller owns out's lifetime; Encode never closes it itself), matching the
// corrected progress-accounting behavior: callers should not observe the
// sink close before the reporter reaches its total.
func Encode(input io.ReaderAt, pageMap elfrange.PageMap, board Board, out io.Writer, reporter ProgressReporter) error {
	if len(pageMap) == 0 {
		return ErrInputFileNoMemoryPages
	}

	pageSize := board.PageSize
	eraseSize := board.FlashSectorEraseSize

	padded := withSectorCoverage(pageMap, pageSize, eraseSize)

	addrs := padded.SortedAddrs()
	numBlocks := uint32(len(addrs))

	reporter.Start(len(addrs) * BlockSize)

	var block Block
	buf := make([]byte, pageSize)

	for i, addr := range addrs {
		fragments := padded[addr]

		if err := elfrange.RealizePage(input, fragments, buf, pageSize); err != nil {
			return err
		}

		block = Block{
			TargetAddr:  uint32(addr),
			PayloadSize: pageSize,
			BlockNo:     uint32(i),
			NumBlocks:   numBlocks,
			FamilyID:    board.FamilyID,
		}
		copy(block.Data[:], buf)

		if _, err := out.Write(block.MarshalBinary()); err != nil {
			return err
		}

		reporter.Advance(BlockSize)
	}

	reporter.Finish()

	return nil
}

// withSectorCoverage inserts empty (zero-filled) page entries for every
// page-aligned address within a touched erase sector that precedes the
// sector's last live page, so the bootloader never sees pre-erase garbage
// between live pages in the same sector.
func withSectorCoverage(pageMap elfrange.PageMap, pageSize uint32, eraseSize uint64) elfrange.PageMap {
	touchedSectors := make(map[uint64]bool)
	for addr := range pageMap {
		touchedSectors[addr/eraseSize] = true
	}

	lastPageAddr := uint64(0)
	for _, addr := range pageMap.SortedAddrs() {
		lastPageAddr = addr
	}

	padded := make(elfrange.PageMap, len(pageMap))
	for addr, frags := range pageMap {
		padded[addr] = frags
	}

	for sector := range touchedSectors {
		page := sector * eraseSize
		end := (sector + 1) * eraseSize
		for ; page < end; page += uint64(pageSize) {
			if page < lastPageAddr {
				if _, ok := padded[page]; !ok {
					padded[page] = nil
				}
			}
		}
	}

	return padded
}
