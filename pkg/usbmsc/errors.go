package usbmsc

import "fmt"

const (
	ErrCodeFailedToGetUsbDevices  = 1
	ErrCodeFailedToOpenUsbDevice  = 2
	ErrCodeFailedToClaimInterface = 3
	ErrCodeNoKnownTransportMethod = 4
	ErrCodeUsbDeviceBulkFailed    = 5
)

// TransportError is the structured error type for this package.
type TransportError struct {
	Code    int
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("usbmsc: [%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("usbmsc: [%d] %s", e.Code, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func newError(code int, message string, cause error) error {
	return &TransportError{Code: code, Message: message, Cause: cause}
}

// ErrFailedToGetUsbDevices is returned when the platform USB context
// cannot enumerate attached devices at all.
var ErrFailedToGetUsbDevices = newError(ErrCodeFailedToGetUsbDevices, "failed to get usb devices", nil)

// FailedToOpenUsbDevice wraps a platform-level open failure (commonly
// permissions).
func FailedToOpenUsbDevice(cause error) error {
	return newError(ErrCodeFailedToOpenUsbDevice, "failed to open usb device", cause)
}

// FailedToClaimInterface wraps a platform-level interface-claim failure.
// When the platform reports the operation unsupported, callers should
// surface the hint that a driver binding may be required.
func FailedToClaimInterface(cause error) error {
	return newError(ErrCodeFailedToClaimInterface, "failed to claim usb interface (a driver binding may be required)", cause)
}

// ErrNoKnownTransportMethod is returned when an Opened device has no
// discovered bulk endpoints to transfer over.
var ErrNoKnownTransportMethod = newError(ErrCodeNoKnownTransportMethod, "no known transportation method", nil)

// UsbDeviceBulkFailed wraps a low-level bulk transfer failure: pipe stalls,
// timeouts, and disconnects.
func UsbDeviceBulkFailed(cause error) error {
	return newError(ErrCodeUsbDeviceBulkFailed, "bulk transfer failed", cause)
}
