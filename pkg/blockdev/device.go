// Package blockdev exposes a byte-addressable io.ReadWriteSeeker over a
// block-addressed SCSI device (§4.F), performing read-modify-write for any
// access that doesn't land on block boundaries.
package blockdev

import (
	"io"

	"uf2flash/pkg/scsi"
)

// Transport is the subset of usbmsc.Opened that UsbBlockDevice depends on,
// kept as an interface so RMW logic can be tested against a fake.
type Transport interface {
	ExecuteCommand(tag uint32, dataLen uint32, direction scsi.Direction, cmd scsi.CommandBlock, data []byte) error
}

// UsbBlockDevice adapts a SCSI Bulk-Only transport into an
// io.ReadWriteSeeker, performing block-granular I/O under the hood and
// read-modify-write for any access that isn't block-aligned.
type UsbBlockDevice struct {
	transport Transport
	lun       uint8
	blockSize uint32
	maxLBA    uint32
	pos       int64
	nextTag   uint32
}

// Open queries the device's capacity via READ CAPACITY(10) and returns a
// ready-to-use UsbBlockDevice.
func Open(transport Transport) (*UsbBlockDevice, error) {
	d := &UsbBlockDevice{transport: transport, nextTag: 0x10}

	buf := make([]byte, 8)
	if err := d.execute(scsi.DirectionIn, scsi.ReadCapacity10{LUN: d.lun}, 8, buf); err != nil {
		return nil, ReadCapacityFailed(err)
	}
	data, ok := scsi.ParseReadCapacity10(buf)
	if !ok {
		return nil, ReadCapacityFailed(nil)
	}
	d.maxLBA = data.LastLBA
	d.blockSize = data.BlockLength

	return d, nil
}

func (d *UsbBlockDevice) execute(direction scsi.Direction, cmd scsi.CommandBlock, dataLen uint32, data []byte) error {
	tag := d.nextTag
	d.nextTag++
	return d.transport.ExecuteCommand(tag, dataLen, direction, cmd, data)
}

// BlockSize returns the device's reported block size in bytes.
func (d *UsbBlockDevice) BlockSize() uint32 { return d.blockSize }

// DiskSize returns the total addressable size of the device in bytes.
func (d *UsbBlockDevice) DiskSize() int64 {
	return (int64(d.maxLBA) + 1) * int64(d.blockSize)
}

// ReadBlocks reads numBlocks whole blocks starting at lba.
func (d *UsbBlockDevice) ReadBlocks(lba uint32, numBlocks uint32) ([]byte, error) {
	buf := make([]byte, numBlocks*d.blockSize)
	cmd := scsi.Read10{LUN: d.lun, LBA: lba, TransferLength: uint16(numBlocks)}
	if err := d.execute(scsi.DirectionIn, cmd, uint32(len(buf)), buf); err != nil {
		return nil, BlockIOFailed(err)
	}
	return buf, nil
}

// WriteBlocks writes whole blocks starting at lba. len(data) must be a
// multiple of the block size.
func (d *UsbBlockDevice) WriteBlocks(lba uint32, data []byte) error {
	numBlocks := uint32(len(data)) / d.blockSize
	cmd := scsi.Write10{LUN: d.lun, LBA: lba, TransferLength: uint16(numBlocks)}
	if err := d.execute(scsi.DirectionOut, cmd, uint32(len(data)), data); err != nil {
		return BlockIOFailed(err)
	}
	return nil
}

// Read implements io.Reader, staging whole blocks and copying out the
// requested byte range.
func (d *UsbBlockDevice) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if d.pos >= d.DiskSize() {
		return 0, io.EOF
	}

	bs := int64(d.blockSize)
	startLBA := uint32(d.pos / bs)
	offset := int(d.pos % bs)

	want := len(p)
	lastByte := d.pos + int64(want) - 1
	if lastByte >= d.DiskSize() {
		lastByte = d.DiskSize() - 1
	}
	endLBA := uint32(lastByte / bs)
	numBlocks := endLBA - startLBA + 1

	staged, err := d.ReadBlocks(startLBA, numBlocks)
	if err != nil {
		return 0, err
	}

	n := copy(p, staged[offset:])
	d.pos += int64(n)
	return n, nil
}

// Write implements io.Writer. Whole-block-aligned writes go straight to
// WriteBlocks; anything else is staged through read-modify-write so
// partial blocks are preserved.
func (d *UsbBlockDevice) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	bs := int64(d.blockSize)
	startLBA := uint32(d.pos / bs)
	offset := int(d.pos % bs)

	if offset == 0 && int64(len(p))%bs == 0 {
		if err := d.WriteBlocks(startLBA, p); err != nil {
			return 0, err
		}
		d.pos += int64(len(p))
		return len(p), nil
	}

	lastByte := d.pos + int64(len(p)) - 1
	endLBA := uint32(lastByte / bs)
	numBlocks := endLBA - startLBA + 1

	scratch, err := d.ReadBlocks(startLBA, numBlocks)
	if err != nil {
		return 0, err
	}
	copy(scratch[offset:], p)
	if err := d.WriteBlocks(startLBA, scratch); err != nil {
		return 0, err
	}

	d.pos += int64(len(p))
	return len(p), nil
}

// Seek implements io.Seeker, clamping the result to [0, DiskSize()].
func (d *UsbBlockDevice) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = d.pos
	case io.SeekEnd:
		base = d.DiskSize()
	default:
		return 0, ErrSeekOutOfRange
	}

	newPos := base + offset
	if newPos < 0 {
		newPos = 0
	}
	if newPos > d.DiskSize() {
		newPos = d.DiskSize()
	}
	d.pos = newPos
	return d.pos, nil
}
