package alpaca

import (
	"errors"
	"fmt"
)

// ASCOM error numbers.
const (
	ErrorNotImplemented       = 0x400
	ErrorInvalidValue         = 0x401
	ErrorValueNotSet          = 0x402
	ErrorNotConnected         = 0x407
	ErrorInvalidWhileParked   = 0x408
	ErrorInvalidWhileSlaved   = 0x409
	ErrorInvalidOperation     = 0x40B
	ErrorActionNotImplemented = 0x40C
	ErrorUnspecified          = 0x4FF
)

// Error is a failed Alpaca request. Number is the ASCOM error number
// reported by the device, Status the HTTP status when the request was
// rejected before reaching it.
type Error struct {
	Status  int
	Number  int
	Message string
}

func (e *Error) Error() string {
	if e.Number == 0 {
		return fmt.Sprintf("alpaca: http status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("alpaca: error 0x%X: %s", e.Number, e.Message)
}

// Is matches errors with the same ASCOM error number, or with the same HTTP
// status if target carries no number.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Number != 0 {
		return t.Number == e.Number
	}
	return t.Status == e.Status
}

var (
	ErrNotImplemented = &Error{Number: ErrorNotImplemented, Message: "property or method not implemented"}
	ErrInvalidValue   = &Error{Number: ErrorInvalidValue, Message: "invalid value"}
	ErrNotConnected   = &Error{Number: ErrorNotConnected, Message: "device not connected"}
)
