package engine

import (
	"errors"
	"fmt"
)

// Code identifies a class of engine failure.
type Code string

const (
	CodeInstrumentNotFound Code = "INSTRUMENT_NOT_FOUND"
	CodeOrderNotFound      Code = "ORDER_NOT_FOUND"
	CodeInvalidOrder       Code = "INVALID_ORDER"
	CodeInvalidInstrument  Code = "INVALID_INSTRUMENT"
	CodeOrderQueueFull     Code = "ORDER_QUEUE_FULL"
	CodeSystemError        Code = "SYSTEM_ERROR"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its code.
var (
	ErrInstrumentNotFound = &Error{Code: CodeInstrumentNotFound, Message: "instrument not found"}
	ErrOrderNotFound      = &Error{Code: CodeOrderNotFound, Message: "order not found"}
	ErrInvalidOrder       = &Error{Code: CodeInvalidOrder, Message: "invalid order"}
	ErrInvalidInstrument  = &Error{Code: CodeInvalidInstrument, Message: "invalid instrument"}
	ErrOrderQueueFull     = &Error{Code: CodeOrderQueueFull, Message: "order queue full"}
	ErrSystem             = &Error{Code: CodeSystemError, Message: "system error"}
)

// Error is the typed failure returned by the engine and the trading service.
type Error struct {
	Code    Code
	Message string
}

// NewError builds an *Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf extracts the code of err. Errors that did not originate in the
// engine are reported as SYSTEM_ERROR.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeSystemError
}
