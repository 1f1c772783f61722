package mcs

import (
	"errors"
	"fmt"
)

// Error is a structured scheduler error carrying the failed operation
// and, where known, the subsystem involved.
type Error struct {
	Op        string    // operation that failed (e.g. "open mib", "bus send")
	Subsystem string    // 3-character code, empty if not applicable
	Code      ErrorCode // high-level category
	Msg       string    // human-readable detail
	Inner     error     // wrapped error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	s := "mcs: " + msg
	if e.Op != "" {
		s += fmt.Sprintf(" (op=%s", e.Op)
		if e.Subsystem != "" {
			s += " subsystem=" + e.Subsystem
		}
		s += ")"
	}
	if e.Inner != nil {
		s += ": " + e.Inner.Error()
	}
	return s
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is matches on the error category.
func (e *Error) Is(target error) bool {
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode categorizes scheduler failures. Startup categories are
// fatal; steady-state categories surface as task progress plus log
// entries and the process carries on.
type ErrorCode string

const (
	// Fatal during startup.
	ErrCodeStoreOpen  ErrorCode = "cannot open MIB store"
	ErrCodeBind       ErrorCode = "socket bind failed"
	ErrCodeBusAttach  ErrorCode = "cannot attach message bus"
	ErrCodeSpawn      ErrorCode = "child process failed"
	ErrCodeBadConfig  ErrorCode = "invalid configuration"
	ErrCodeBadScript  ErrorCode = "init script error"

	// Recoverable in steady state.
	ErrCodeStoreFetch   ErrorCode = "MIB fetch failed"
	ErrCodeStoreWrite   ErrorCode = "MIB store failed"
	ErrCodeBusFull      ErrorCode = "message bus full"
	ErrCodeBusEmpty     ErrorCode = "message bus empty"
	ErrCodeBusGone      ErrorCode = "message bus removed"
	ErrCodeQueueFull    ErrorCode = "task queue full"
	ErrCodeFrameParse   ErrorCode = "malformed subsystem frame"
	ErrCodeShortMessage ErrorCode = "short message"
	ErrCodeBadSubsystem ErrorCode = "unknown subsystem"
	ErrCodeBadCommand   ErrorCode = "unknown command"
)

// NewError creates a structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewSubsystemError creates a structured error tagged with a subsystem
// code.
func NewSubsystemError(op, subsystem string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Subsystem: subsystem, Code: code, Msg: msg}
}

// WrapError wraps an existing error with scheduler context. A nil inner
// error yields nil.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ie, ok := inner.(*Error); ok {
		return &Error{Op: op, Subsystem: ie.Subsystem, Code: ie.Code, Msg: ie.Msg, Inner: ie.Inner}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode checks whether err carries the given category.
func IsCode(err error, code ErrorCode) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}
