package elfrange

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromELFSegments_ContentsAndBSS(t *testing.T) {
	raw := buildELF([]segSpec{
		{paddr: 0x1000, vaddr: 0x1000, filesz: 100, memsz: 200, content: bytes.Repeat([]byte{1}, 100)},
	})

	f, err := elf.NewFile(bytes.NewReader(raw))
	require.NoError(t, err)

	ranges, err := FromELFSegments(f)
	require.NoError(t, err)
	require.Len(t, ranges, 2)

	assert.Equal(t, Contents, ranges[0].Kind)
	assert.Equal(t, uint64(0x1000), ranges[0].From)
	assert.Equal(t, uint64(0x1064), ranges[0].To)

	assert.Equal(t, NoContents, ranges[1].Kind)
	assert.Equal(t, uint64(0x1064), ranges[1].From)
	assert.Equal(t, uint64(0x10c8), ranges[1].To)
}

func TestCheck_RejectsContentsInNoContentsRange(t *testing.T) {
	ranges := []AddressRange{{Kind: NoContents, From: 0x100, To: 0x200}}
	_, err := Check(ranges, 0x100, 0x10, false)
	require.Error(t, err)

	var rerr *RangeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeMemoryContentsForUninitialized, rerr.Code)
}

func TestCheck_RejectsUncoveredRange(t *testing.T) {
	ranges := []AddressRange{{Kind: Contents, From: 0, To: 0x10}}
	_, err := Check(ranges, 0x20, 0x10, false)
	require.Error(t, err)

	var rerr *RangeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeMemorySegmentInvalidForDevice, rerr.Code)
}
