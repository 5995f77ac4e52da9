package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error so handlers can map it to an HTTP status
// without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindPrecondition
	KindForbidden
	KindNotFound
	KindExternal
)

type Error struct {
	Kind    Kind
	Code    string // stable machine tag, e.g. "slot_full"
	Message string
	// CurrentStatus carries the entity status for precondition errors so the
	// caller can render an actionable message.
	CurrentStatus string
	Err           error
}

func (e *Error) Error() string {
	if e.CurrentStatus != "" {
		return fmt.Sprintf("%s: %s (current status: %s)", e.Code, e.Message, e.CurrentStatus)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func Precondition(code, msg, currentStatus string) *Error {
	return &Error{Kind: KindPrecondition, Code: code, Message: msg, CurrentStatus: currentStatus}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: "forbidden", Message: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func External(code, msg string, err error) *Error {
	return &Error{Kind: KindExternal, Code: code, Message: msg, Err: err}
}

// KindOf returns the classification of err, or KindUnknown for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the machine tag of err, or "" for plain errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
