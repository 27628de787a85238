package rpc

import (
	"errors"
	"fmt"
)

// Code is a structured error code carried in a response.
type Code int

const (
	// CodeInternalError is an unexpected fault inside a handler
	CodeInternalError Code = 5001
	// CodeInputError is a malformed body, bad framing or input a backend rejected
	CodeInputError Code = 5002
	// CodeMethodError is an unknown method name
	CodeMethodError Code = 5004
	// CodeParamError is a missing or invalid parameter
	CodeParamError Code = 5005
	// CodeNotInitialized is a feature request before initialize
	CodeNotInitialized Code = 5006
	// CodeRequestTimeout is produced locally by the client, never by the server
	CodeRequestTimeout Code = 5007
)

// String returns the symbolic name of the code.
func (c Code) String() string {
	switch c {
	case CodeInternalError:
		return "InternalError"
	case CodeInputError:
		return "InputError"
	case CodeMethodError:
		return "MethodError"
	case CodeParamError:
		return "ParamError"
	case CodeNotInitialized:
		return "NotInitialized"
	case CodeRequestTimeout:
		return "RequestTimeout"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is the error object of a failed response.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewError creates an error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, int(e.Code), e.Message)
}

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code Code) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}
