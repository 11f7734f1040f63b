// Package uf2 implements the UF2 (USB Flashing Format) 512-byte block wire
// encoding and the board descriptor registry used to tag emitted blocks.
package uf2

import "encoding/binary"

// Wire constants, normative per the UF2 specification.
const (
	MagicStart0 uint32 = 0x0A324655
	MagicStart1 uint32 = 0x9E5D5157
	MagicEnd    uint32 = 0x0AB16F30

	// FlagFamilyIDPresent marks the file_size field as carrying a family id
	// rather than a total file size.
	FlagFamilyIDPresent uint32 = 0x00002000

	// BlockSize is the fixed wire size of every UF2 block.
	BlockSize = 512

	// MaxPayload is the largest payload a block can carry; board page
	// sizes must not exceed it.
	MaxPayload = 476
)

// Block is the 512-byte UF2 wire record.
type Block struct {
	TargetAddr   uint32
	PayloadSize  uint32
	BlockNo      uint32
	NumBlocks    uint32
	FamilyID     uint32
	Data         [MaxPayload]byte
}

// MarshalBinary encodes the block to its exact 512-byte little-endian wire
// form.
func (b *Block) MarshalBinary() []byte {
	buf := make([]byte, BlockSize)
	le := binary.LittleEndian

	le.PutUint32(buf[0:4], MagicStart0)
	le.PutUint32(buf[4:8], MagicStart1)
	le.PutUint32(buf[8:12], FlagFamilyIDPresent)
	le.PutUint32(buf[12:16], b.TargetAddr)
	le.PutUint32(buf[16:20], b.PayloadSize)
	le.PutUint32(buf[20:24], b.BlockNo)
	le.PutUint32(buf[24:28], b.NumBlocks)
	le.PutUint32(buf[28:32], b.FamilyID)
	copy(buf[32:32+MaxPayload], b.Data[:])
	le.PutUint32(buf[508:512], MagicEnd)

	return buf
}
