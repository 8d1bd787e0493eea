// Package fault defines the stable error codes surfaced at every transport
// boundary. Every operator-visible failure maps to exactly one code.
package fault

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error code.
type Code string

const (
	NotFound           Code = "not_found"
	AlreadyExists      Code = "already_exists"
	InvalidState       Code = "invalid_state"
	ValidationError    Code = "validation_error"
	ChainIntegrityErr  Code = "chain_integrity_error"
	SerializationError Code = "serialization_error"
	Backpressure       Code = "backpressure"
)

// Fault is a typed error carrying a stable code and a human-readable message.
type Fault struct {
	Code    Code
	Message string
}

func (f *Fault) Error() string {
	return string(f.Code) + ": " + f.Message
}

// New creates a Fault with the given code and formatted message.
func New(code Code, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from an error chain. Returns "" for nil and
// "internal" for errors that carry no Fault.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return "internal"
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
