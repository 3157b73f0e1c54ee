// Package vaulterr defines the error taxonomy shared by every vaultdb
// component. Callers pattern-match on Kind rather than parsing message
// strings, and ContentHashMismatch carries both hashes so a caller can
// re-read and retry.
package vaulterr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy. Zero value is KindUnknown and
// should never be constructed directly.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindValidationFailed
	KindSchemaInvalid
	KindProtectedField
	KindContentHashMismatch
	KindMissingContentHash
	KindPolicyDenied
	KindPathUnsafe
	KindIoError
	KindIndexError
	KindSqlDenied
	KindTimeout
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindValidationFailed:
		return "validation_failed"
	case KindSchemaInvalid:
		return "schema_invalid"
	case KindProtectedField:
		return "protected_field"
	case KindContentHashMismatch:
		return "content_hash_mismatch"
	case KindMissingContentHash:
		return "missing_content_hash"
	case KindPolicyDenied:
		return "policy_denied"
	case KindPathUnsafe:
		return "path_unsafe"
	case KindIoError:
		return "io_error"
	case KindIndexError:
		return "index_error"
	case KindSqlDenied:
		return "sql_denied"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every vaultdb operation
// that fails for a taxonomy-recognized reason.
//
// Fields beyond Kind/Reason/Err are populated only for the kinds that
// need them (Op/Path for IoError, Current/Provided for
// ContentHashMismatch, Token for SqlDenied).
type Error struct {
	Kind     Kind
	Reason   string
	Op       string
	Path     string
	Token    string
	Current  string
	Provided string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	switch e.Kind {
	case KindIoError:
		if e.Op != "" || e.Path != "" {
			msg += fmt.Sprintf(" (op=%s path=%s)", e.Op, e.Path)
		}
	case KindContentHashMismatch:
		msg += fmt.Sprintf(" (current=%s provided=%s)", e.Current, e.Provided)
	case KindSqlDenied:
		msg += fmt.Sprintf(" (token=%s)", e.Token)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target has the same Kind, so callers can use
// errors.Is(err, vaulterr.NotFound("")) as a lightweight taxonomy check.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return other.Kind == e.Kind
}

// KindOf extracts the Kind from err, or KindUnknown if err does not wrap
// an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

func NotFound(reason string) error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

func AlreadyExists(reason string) error {
	return &Error{Kind: KindAlreadyExists, Reason: reason}
}

func ValidationFailed(reason string) error {
	return &Error{Kind: KindValidationFailed, Reason: reason}
}

func SchemaInvalid(reason string) error {
	return &Error{Kind: KindSchemaInvalid, Reason: reason}
}

func ProtectedField(reason string) error {
	return &Error{Kind: KindProtectedField, Reason: reason}
}

func ContentHashMismatch(current, provided string) error {
	return &Error{Kind: KindContentHashMismatch, Current: current, Provided: provided}
}

func MissingContentHash() error {
	return &Error{Kind: KindMissingContentHash}
}

func PolicyDenied(reason string) error {
	return &Error{Kind: KindPolicyDenied, Reason: reason}
}

func PathUnsafe(path string) error {
	return &Error{Kind: KindPathUnsafe, Path: path}
}

func IoError(op, path string, cause error) error {
	return &Error{Kind: KindIoError, Op: op, Path: path, Err: cause}
}

func IndexError(cause error) error {
	return &Error{Kind: KindIndexError, Err: cause}
}

func SqlDenied(token string) error {
	return &Error{Kind: KindSqlDenied, Token: token}
}

func Timeout(reason string) error {
	return &Error{Kind: KindTimeout, Reason: reason}
}

func Canceled(reason string) error {
	return &Error{Kind: KindCanceled, Reason: reason}
}

// Wrap attaches op/path context to err without double-wrapping an
// existing *Error of the same kind. If err is already an *Error, Op/Path
// fill only empty fields.
func Wrap(err error, kind Kind, op, path string) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) && existing.Kind == kind {
		if existing.Op == "" {
			existing.Op = op
		}

		if existing.Path == "" {
			existing.Path = path
		}

		return existing
	}

	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
