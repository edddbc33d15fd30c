package netstack

import (
	"errors"
	"fmt"
)

// Error represents a structured netstack error with operation context.
type Error struct {
	Op    string // Operation that failed (e.g., "register_protocol", "device_output")
	Dev   string // Device name ("" if not applicable)
	Code  Code   // High-level error category
	Msg   string // Human-readable message
	Inner error  // Wrapped error (driver failures)
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Op != "" && e.Dev != "":
		return fmt.Sprintf("netstack: %s (op=%s, dev=%s)", msg, e.Op, e.Dev)
	case e.Op != "":
		return fmt.Sprintf("netstack: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("netstack: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support by comparing error codes
func (e *Error) Is(target error) bool {
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// Code represents high-level error categories
type Code string

const (
	CodeAlreadyRegistered Code = "already registered"
	CodeDuplicateFamily   Code = "duplicate address family"
	CodeAlreadyOpen       Code = "already open"
	CodeNotOpen           Code = "not open"
	CodeTooLong           Code = "frame exceeds device mtu"
	CodeQueueFull         Code = "input queue full"
	CodeDriverError       Code = "driver failure"
	CodeAlreadyRunning    Code = "stack already running"
	CodeNoRoute           Code = "no matching interface"
	CodeTooShort          Code = "packet too short"
	CodeBadChecksum       Code = "checksum mismatch"
)

// Error constructors

// NewError creates a new structured error
func NewError(op string, code Code, msg string) *Error {
	return &Error{
		Op:   op,
		Code: code,
		Msg:  msg,
	}
}

// NewDeviceError creates a new device-specific error
func NewDeviceError(op, dev string, code Code, msg string) *Error {
	return &Error{
		Op:   op,
		Dev:  dev,
		Code: code,
		Msg:  msg,
	}
}

// WrapDriverError wraps a driver error with device context
func WrapDriverError(op, dev string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ne, ok := inner.(*Error); ok {
		return &Error{
			Op:    op,
			Dev:   dev,
			Code:  ne.Code,
			Msg:   ne.Msg,
			Inner: ne.Inner,
		}
	}
	return &Error{
		Op:    op,
		Dev:   dev,
		Code:  CodeDriverError,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code Code) bool {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}
