// Package fault defines the recoverable error kinds shared by the pitch and
// payment managers. Every guard failure maps to exactly one kind so the HTTP
// layer can translate it without inspecting message text.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindUnauthorized
	KindInvalidState
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error carries a kind alongside the message. It supports errors.Is against
// the kind sentinels below and errors.As for callers that need the kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Sentinels for errors.Is checks.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
	ErrInvalidState = &Error{Kind: KindInvalidState, Msg: "invalid state"}
	ErrConflict     = &Error{Kind: KindConflict, Msg: "conflict"}
)

// Is matches any *Error of the same kind, so
// errors.Is(fault.NotFound("x"), fault.ErrNotFound) holds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or 0 when err is not a fault error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
