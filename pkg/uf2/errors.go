package uf2

import "fmt"

const (
	ErrCodeInputFileNoMemoryPages = 1
)

// EncodeError is the structured error type for encoding failures.
type EncodeError struct {
	Code    int
	Message string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("uf2: [%d] %s", e.Code, e.Message)
}

// ErrInputFileNoMemoryPages is returned when the paginator produced an
// empty PageMap — there is nothing to flash.
var ErrInputFileNoMemoryPages = &EncodeError{
	Code:    ErrCodeInputFileNoMemoryPages,
	Message: "the input file has no memory pages",
}
