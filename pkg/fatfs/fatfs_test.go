package fatfs

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDisk is a []byte-backed io.ReadWriteSeeker standing in for a
// pkg/blockdev.PartitionView in tests.
type memDisk struct {
	data []byte
	pos  int64
}

func (m *memDisk) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.data))
	}
	m.pos = base + offset
	return m.pos, nil
}

func (m *memDisk) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memDisk) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		return 0, io.ErrShortWrite
	}
	n := copy(m.data[m.pos:end], p)
	m.pos += int64(n)
	return n, nil
}

// newFAT12Fixture builds a 100-sector FAT12 volume (1 sector/cluster, 2
// FAT copies of 1 sector each, a 1-sector root directory) pre-populated
// with an INFO_UF2.TXT marker entry, the standard shape of a UF2
// bootloader's virtual disk.
func newFAT12Fixture(t *testing.T) *memDisk {
	t.Helper()
	const totalSectors = 100
	const sectorSize = 512

	disk := &memDisk{data: make([]byte, totalSectors*sectorSize)}
	boot := disk.data[0:512]
	binary.LittleEndian.PutUint16(boot[11:13], sectorSize)
	boot[13] = 1 // sectors/cluster
	binary.LittleEndian.PutUint16(boot[14:16], 1)  // reserved sectors
	boot[16] = 2                                   // num FATs
	binary.LittleEndian.PutUint16(boot[17:19], 16) // root entry count
	binary.LittleEndian.PutUint16(boot[19:21], totalSectors)
	boot[21] = 0xF8
	binary.LittleEndian.PutUint16(boot[22:24], 1) // sectors per FAT
	boot[510] = 0x55
	boot[511] = 0xAA

	// Root directory starts at sector 1(reserved) + 2*1(FATs) = 3.
	rootDir := disk.data[3*sectorSize : 4*sectorSize]
	copy(rootDir[0:11], []byte("INFO_UF2TXT"))
	rootDir[11] = 0x20

	return disk
}

func TestMount_ParsesFAT12Geometry(t *testing.T) {
	disk := newFAT12Fixture(t)
	v, err := Mount(disk)
	require.NoError(t, err)
	assert.Equal(t, fat12, v.typ)
	assert.Equal(t, uint32(4), v.dataStartSector)
}

func TestHasMarkerFile_FindsExistingEntry(t *testing.T) {
	v, err := Mount(newFAT12Fixture(t))
	require.NoError(t, err)

	found, err := v.HasMarkerFile("INFO_UF2.TXT")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = v.HasMarkerFile("NONEXISTENT")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateFile_WritesChainedClustersAndDirEntry(t *testing.T) {
	v, err := Mount(newFAT12Fixture(t))
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0xAB}, 600) // spans 2 clusters of 512 bytes
	require.NoError(t, v.CreateFile("out.uf2", data))

	found, err := v.HasMarkerFile("OUT.UF2")
	require.NoError(t, err)
	assert.True(t, found)

	got, err := v.ReadFile("out.uf2")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadFile_MissingNameReturnsErrFileNotFound(t *testing.T) {
	v, err := Mount(newFAT12Fixture(t))
	require.NoError(t, err)

	_, err = v.ReadFile("nope.bin")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
