package blockdev

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uf2flash/pkg/scsi"
)

// fakeTransport backs ExecuteCommand with an in-memory byte store, so RMW
// behavior can be asserted without real hardware.
type fakeTransport struct {
	blockSize uint32
	lastLBA   uint32
	store     []byte

	reads  []scsi.Read10
	writes []scsi.Write10
}

func newFakeTransport(blockSize uint32, numBlocks uint32) *fakeTransport {
	return &fakeTransport{
		blockSize: blockSize,
		lastLBA:   numBlocks - 1,
		store:     make([]byte, blockSize*numBlocks),
	}
}

func (f *fakeTransport) ExecuteCommand(tag uint32, dataLen uint32, direction scsi.Direction, cmd scsi.CommandBlock, data []byte) error {
	switch c := cmd.(type) {
	case scsi.ReadCapacity10:
		binary.BigEndian.PutUint32(data[0:4], f.lastLBA)
		binary.BigEndian.PutUint32(data[4:8], f.blockSize)
	case scsi.Read10:
		f.reads = append(f.reads, c)
		off := int(c.LBA) * int(f.blockSize)
		copy(data, f.store[off:off+len(data)])
	case scsi.Write10:
		f.writes = append(f.writes, c)
		off := int(c.LBA) * int(f.blockSize)
		copy(f.store[off:], data)
	}
	return nil
}

func TestUsbBlockDevice_OpenReadsCapacity(t *testing.T) {
	tr := newFakeTransport(512, 1000)
	dev, err := Open(tr)
	require.NoError(t, err)
	assert.Equal(t, uint32(512), dev.BlockSize())
	assert.Equal(t, int64(512*1000), dev.DiskSize())
}

// TestUsbBlockDevice_PartialWriteIsReadModifyWrite mirrors the seed test:
// writing 3 bytes at byte position 1000 with a 512-byte block size touches
// LBA 1 only, and must read-modify-write rather than clobber the block.
func TestUsbBlockDevice_PartialWriteIsReadModifyWrite(t *testing.T) {
	tr := newFakeTransport(512, 10)
	for i := range tr.store {
		tr.store[i] = 0xAA
	}
	dev, err := Open(tr)
	require.NoError(t, err)

	_, err = dev.Seek(1000, io.SeekStart)
	require.NoError(t, err)

	n, err := dev.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, tr.reads, 1)
	assert.Equal(t, uint32(1), tr.reads[0].LBA)
	require.Len(t, tr.writes, 1)
	assert.Equal(t, uint32(1), tr.writes[0].LBA)

	offsetInBlock := 1000 - 512
	assert.Equal(t, []byte{1, 2, 3}, tr.store[512+offsetInBlock:512+offsetInBlock+3])
	assert.Equal(t, byte(0xAA), tr.store[512+offsetInBlock-1], "bytes outside the write must survive untouched")

	_, err = dev.Seek(1000, io.SeekStart)
	require.NoError(t, err)
	readBack := make([]byte, 3)
	_, err = dev.Read(readBack)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, readBack)
}

func TestUsbBlockDevice_AlignedWriteSkipsReadPhase(t *testing.T) {
	tr := newFakeTransport(512, 10)
	dev, err := Open(tr)
	require.NoError(t, err)

	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = byte(i)
	}
	_, err = dev.Write(buf)
	require.NoError(t, err)

	assert.Empty(t, tr.reads, "block-aligned, whole-block write must not trigger a read phase")
	require.Len(t, tr.writes, 1)
}

func TestUsbBlockDevice_SeekClampsToDiskBounds(t *testing.T) {
	tr := newFakeTransport(512, 2)
	dev, err := Open(tr)
	require.NoError(t, err)

	pos, err := dev.Seek(1<<40, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, dev.DiskSize(), pos)

	pos, err = dev.Seek(-2*dev.DiskSize(), io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}
