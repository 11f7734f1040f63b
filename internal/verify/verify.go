// Package verify computes and compares BLAKE2b checksums of flashed
// regions, used to confirm a UF2 block sequence actually landed correctly
// after a flash.
package verify

import (
	"bytes"
	"io"

	"golang.org/x/crypto/blake2b"

	"uf2flash/pkg/elfrange"
)

// Digest is a BLAKE2b-256 checksum.
type Digest [blake2b.Size256]byte

// DigestPageMap hashes each realized page of pageMap, in address order,
// into a single running digest — the same traversal order Encode uses, so
// the checksum covers exactly the bytes that end up in the image.
func DigestPageMap(input io.ReaderAt, pageMap elfrange.PageMap, pageSize uint32) (Digest, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Digest{}, err
	}

	buf := make([]byte, pageSize)
	for _, addr := range pageMap.SortedAddrs() {
		if err := elfrange.RealizePage(input, pageMap[addr], buf, pageSize); err != nil {
			return Digest{}, err
		}
		if _, err := h.Write(buf); err != nil {
			return Digest{}, err
		}
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// DigestReadback hashes numPages pages of size pageSize read back from
// device, starting at baseAddr, matching the block layout written by
// uf2.Encode so it can be compared against DigestPageMap's result.
func DigestReadback(device io.ReaderAt, baseAddr uint64, numPages int, pageSize uint32) (Digest, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Digest{}, err
	}

	buf := make([]byte, pageSize)
	for i := 0; i < numPages; i++ {
		off := int64(baseAddr) + int64(i)*int64(pageSize)
		if _, err := device.ReadAt(buf, off); err != nil && err != io.EOF {
			return Digest{}, err
		}
		if _, err := h.Write(buf); err != nil {
			return Digest{}, err
		}
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// DigestStream hashes r in its entirety. Used to compare the UF2 byte
// stream handed to a FAT collaborator against whatever bytes are read
// back from the file it wrote, since a deploy through a FAT collaborator
// no longer has fixed ELF addresses to re-derive a page map from.
func DigestStream(r io.Reader) (Digest, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Digest{}, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Equal reports whether two digests match.
func Equal(a, b Digest) bool { return bytes.Equal(a[:], b[:]) }
