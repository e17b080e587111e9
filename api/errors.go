// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error taxonomy of the connection harness and helpers to classify errors.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the harness.
var (
	ErrEndOfStream      = errors.New("end of stream")
	ErrOperationAborted = errors.New("operation aborted")
	ErrDuplicateEmit    = errors.New("response already emitted")
	ErrExecutorClosed   = errors.New("executor is closed")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrListenerClosed   = errors.New("listener is closed")
)

// ErrorCode represents specific error conditions in the harness.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeBind
	ErrCodeAccept
	ErrCodeRead
	ErrCodeWrite
	ErrCodeTimeout
	ErrCodeProtocol
	ErrCodeAborted
	ErrCodeContract
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeBind:
		return "bind"
	case ErrCodeAccept:
		return "accept"
	case ErrCodeRead:
		return "read"
	case ErrCodeWrite:
		return "write"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeProtocol:
		return "protocol"
	case ErrCodeAborted:
		return "aborted"
	case ErrCodeContract:
		return "contract"
	default:
		return "internal"
	}
}

// Error represents a structured error with code, failing operation and cause.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Code, e.Err)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsBindError reports whether err aborted startup while binding.
func IsBindError(err error) bool { return CodeOf(err) == ErrCodeBind }

// IsTimeout reports whether err is an idle or dispatch timeout.
func IsTimeout(err error) bool { return CodeOf(err) == ErrCodeTimeout }

// IsAborted reports whether err was caused by stopping the execution context.
func IsAborted(err error) bool {
	return errors.Is(err, ErrOperationAborted) || CodeOf(err) == ErrCodeAborted
}
