package db

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without inspecting messages.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindStorage
	KindImport
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	case KindImport:
		return "import"
	case KindNotFound:
		return "not found"
	}
	return "unknown"
}

// Error is returned by every exported operation of this package.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "AddUser"
	Msg  string
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err, or any error it wraps, is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func validationErr(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func storageErr(op, msg string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Msg: msg, Err: err}
}

func importErr(op, msg string, err error) error {
	return &Error{Kind: KindImport, Op: op, Msg: msg, Err: err}
}

func notFoundErr(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}
