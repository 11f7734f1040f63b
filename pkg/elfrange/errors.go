package elfrange

import "fmt"

// Error codes for the elfrange package.
const (
	ErrCodeNoSegments                        = 1
	ErrCodeMemoryContentsForUninitialized     = 2
	ErrCodeMemorySegmentInvalidForDevice      = 3
	ErrCodeInMemorySegmentsOverlap            = 4
	ErrCodeElfParse                           = 5
)

// RangeError is the structured error type for this package, carrying a
// numeric code so callers can classify failures without string matching.
type RangeError struct {
	Code    int
	Message string
	Details string
}

func (e *RangeError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("elfrange: [%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("elfrange: [%d] %s", e.Code, e.Message)
}

func newError(code int, message string, details ...string) error {
	err := &RangeError{Code: code, Message: message}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// Predefined sentinel errors, matched with errors.Is.
var (
	ErrNoSegments = newError(ErrCodeNoSegments, "no segments in ELF")
)

// MemoryContentsForUninitializedMemory reports that file-backed bytes were
// found overlapping a region the ELF declared as uninitialized (BSS).
func MemoryContentsForUninitializedMemory(addr uint64) error {
	return newError(ErrCodeMemoryContentsForUninitialized,
		"memory contents found for uninitialized memory",
		fmt.Sprintf("addr=0x%08x", addr))
}

// MemorySegmentInvalidForDevice reports that a segment's mapped region is
// not covered by any known address range.
func MemorySegmentInvalidForDevice(from, to uint64) error {
	return newError(ErrCodeMemorySegmentInvalidForDevice,
		"memory segment invalid for device",
		fmt.Sprintf("from=0x%08x to=0x%08x", from, to))
}

// ErrInMemorySegmentsOverlap is returned when two PT_LOAD segments claim
// overlapping bytes within the same target page — a fatal input error.
var ErrInMemorySegmentsOverlap = newError(ErrCodeInMemorySegmentsOverlap, "in-memory segments overlap")
