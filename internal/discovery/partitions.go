package discovery

import (
	"encoding/binary"
	"io"
)

const sectorSize = 512

// PartitionInfo describes one primary MBR partition entry, or the whole
// device when no partition table is present (common for small UF2
// bootloader drives, which are often a bare FAT12 volume with no MBR at
// all).
type PartitionInfo struct {
	Index     int
	FirstByte int64
	SizeBytes int64
}

// ScanPartitionTable reads the MBR at the start of dev (a raw block
// device such as pkg/blockdev.UsbBlockDevice) and returns every non-empty
// primary partition entry, grounded in
// original_source/.../to_usb.rs::list_uf2_partitions's multi-partition
// walk. If no valid partition table is found, it falls back to treating
// the entire device as a single partition.
func ScanPartitionTable(dev io.ReadWriteSeeker, diskSize int64) ([]PartitionInfo, error) {
	if _, err := dev.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	mbr := make([]byte, sectorSize)
	if _, err := io.ReadFull(dev, mbr); err != nil {
		return nil, err
	}

	whole := []PartitionInfo{{Index: 0, FirstByte: 0, SizeBytes: diskSize}}
	if mbr[510] != 0x55 || mbr[511] != 0xAA {
		return whole, nil
	}

	var found []PartitionInfo
	for i := 0; i < 4; i++ {
		entry := mbr[446+i*16 : 446+i*16+16]
		partType := entry[4]
		if partType == 0x00 {
			continue
		}
		firstLBA := binary.LittleEndian.Uint32(entry[8:12])
		numSectors := binary.LittleEndian.Uint32(entry[12:16])
		if numSectors == 0 {
			continue
		}
		found = append(found, PartitionInfo{
			Index:     i,
			FirstByte: int64(firstLBA) * sectorSize,
			SizeBytes: int64(numSectors) * sectorSize,
		})
	}

	if len(found) == 0 {
		return whole, nil
	}
	return found, nil
}
