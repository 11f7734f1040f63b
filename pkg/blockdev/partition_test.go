package blockdev

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDevice is a minimal in-memory io.ReadWriteSeeker standing in for a
// UsbBlockDevice so PartitionView's clamping can be tested in isolation.
type memDevice struct {
	buf []byte
	pos int64
}

func (m *memDevice) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memDevice) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += int64(n)
	return n, nil
}

func (m *memDevice) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.buf))
	}
	m.pos = base + offset
	return m.pos, nil
}

// TestPartitionView_ClampsSeekPastEnd mirrors the seed test: an
// end-anchored seek beyond the partition window clamps to the partition
// boundary rather than escaping into the rest of the device.
func TestPartitionView_ClampsSeekPastEnd(t *testing.T) {
	dev := &memDevice{buf: make([]byte, 4096)}
	pv, err := NewPartitionView(dev, 1024, 512)
	require.NoError(t, err)

	pos, err := pv.Seek(1000, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(512), pos, "seek past end clamps to partition size")

	abs, err := dev.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(1024+512), abs)
}

func TestPartitionView_ReadWriteStayWithinWindow(t *testing.T) {
	dev := &memDevice{buf: make([]byte, 2048)}
	pv, err := NewPartitionView(dev, 512, 256)
	require.NoError(t, err)

	n, err := pv.Write(bytes.Repeat([]byte{0xFF}, 300))
	require.NoError(t, err)
	assert.Equal(t, 256, n, "write is truncated to the partition window")

	_, err = pv.Seek(0, io.SeekStart)
	require.NoError(t, err)
	readBuf := make([]byte, 300)
	n, err = pv.Read(readBuf)
	require.NoError(t, err)
	assert.Equal(t, 256, n)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 256), readBuf[:256])

	for i := 512; i < 512+256; i++ {
		assert.Equal(t, byte(0xFF), dev.buf[i])
	}
	for i := 512 + 256; i < len(dev.buf); i++ {
		assert.Equal(t, byte(0), dev.buf[i])
	}
}

func TestPartitionView_SeekNegativeClampsToZero(t *testing.T) {
	dev := &memDevice{buf: make([]byte, 1024)}
	pv, err := NewPartitionView(dev, 0, 512)
	require.NoError(t, err)

	pos, err := pv.Seek(-50, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}
