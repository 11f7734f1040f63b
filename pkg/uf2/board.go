package uf2

import "strings"

// Default descriptor fields, used when a caller doesn't override them.
const (
	DefaultPageSize             uint32 = 256
	DefaultFlashSectorEraseSize uint64 = 4096
)

// Board is a per-board descriptor: the constants the encoder and deploy
// path need to talk to one family of bootloader. FamilyID is the only
// field a caller must supply; everything else falls back to the documented
// defaults.
type Board struct {
	Name                 string
	FamilyID             uint32
	PageSize             uint32
	FlashSectorEraseSize uint64
	USBVendorID          uint16
	USBProductID         uint16
	HasUSBMatch          bool
}

// Matches reports whether this board descriptor identifies the given
// enumerated USB vendor/product id pair.
func (b Board) Matches(vid, pid uint16) bool {
	return b.HasUSBMatch && b.USBVendorID == vid && b.USBProductID == pid
}

// NewBoard builds a Board descriptor, applying the documented defaults for
// any zero-valued optional field. FamilyID is required.
func NewBoard(name string, familyID uint32, opts ...BoardOption) Board {
	b := Board{
		Name:                 name,
		FamilyID:             familyID,
		PageSize:             DefaultPageSize,
		FlashSectorEraseSize: DefaultFlashSectorEraseSize,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// BoardOption customizes a Board built with NewBoard.
type BoardOption func(*Board)

// WithPageSize overrides the default UF2 page size (must be ≤ MaxPayload).
func WithPageSize(pageSize uint32) BoardOption {
	return func(b *Board) { b.PageSize = pageSize }
}

// WithFlashSectorEraseSize overrides the default erase-sector size.
func WithFlashSectorEraseSize(size uint64) BoardOption {
	return func(b *Board) { b.FlashSectorEraseSize = size }
}

// WithUSBMatch attaches a VID/PID pair this board is recognized by during
// enumeration.
func WithUSBMatch(vid, pid uint16) BoardOption {
	return func(b *Board) {
		b.USBVendorID = vid
		b.USBProductID = pid
		b.HasUSBMatch = true
	}
}

// Registry is a process-level set of known board descriptors, extensible
// by user-supplied overrides.
type Registry struct {
	boards []Board
}

// NewRegistry builds a registry seeded with the well-known boards in the
// original elf2flash board list (RP2040, RP2350, Circuit Playground
// Bluefruit).
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(NewBoard("RP2040", 0xe48bff56, WithUSBMatch(0x2e8a, 0x0003)))
	r.Register(NewBoard("RP2350", 0xe48bff59, WithUSBMatch(0x2e8a, 0x000f)))
	r.Register(NewBoard("CircuitPlaygroundBluefruit", 0xada52840, WithUSBMatch(0x239A, 0x0045)))
	return r
}

// Register adds (or, by name, replaces) a board descriptor.
func (r *Registry) Register(b Board) {
	for i, existing := range r.boards {
		if strings.EqualFold(existing.Name, b.Name) {
			r.boards[i] = b
			return
		}
	}
	r.boards = append(r.boards, b)
}

// All returns every registered board, in registration order.
func (r *Registry) All() []Board {
	out := make([]Board, len(r.boards))
	copy(out, r.boards)
	return out
}

// Lookup finds a board by case-insensitive name.
func (r *Registry) Lookup(name string) (Board, bool) {
	for _, b := range r.boards {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return Board{}, false
}

// MatchUSB finds the first registered board whose USB match fires for the
// given vendor/product id pair.
func (r *Registry) MatchUSB(vid, pid uint16) (Board, bool) {
	for _, b := range r.boards {
		if b.Matches(vid, pid) {
			return b, true
		}
	}
	return Board{}, false
}
