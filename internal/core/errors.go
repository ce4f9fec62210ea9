package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the boundary layer.
type Kind uint8

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the typed error returned by the ledger and the stores.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Kind sentinels. errors.Is(err, ErrNotFound) matches any *Error of that kind.
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrInternal   = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality against the bare sentinels above.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Conflict(op, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure. Typed errors pass through unchanged
// so a NotFound raised deep in a store keeps its kind.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

// PublicMessage is the message safe to show to a client.
func PublicMessage(err error) string {
	var typed *Error
	if errors.As(err, &typed) && typed.Kind != KindInternal {
		if typed.Message != "" {
			return typed.Message
		}
		return typed.Kind.String()
	}
	return "internal error"
}
