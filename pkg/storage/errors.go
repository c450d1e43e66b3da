package storage

import (
	"errors"
	"fmt"
)

// StorageError is the error returned by every ObjectStore implementation.
//
// Backends translate their native failures (filesystem errors, SDK errors,
// database errors) into a StorageError carrying one of the ErrorCode
// categories below. Callers match on the category with errors.Is:
//
//	if errors.Is(err, storage.ErrAlreadyExists) {
//	    // another writer won the commit race
//	}
//
// The original native error is preserved and reachable via errors.Unwrap.
type StorageError struct {
	// Code is the error category
	Code ErrorCode

	// Store is the name of the backend that produced the error
	// (e.g. "HadoopFileStorageBackend")
	Store string

	// Path is the logical or native path related to the error (if applicable)
	Path string

	// Err is the underlying native error, if any
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	msg := e.Code.Error()
	if e.Store != "" {
		msg = e.Store + ": " + msg
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying native error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the ErrorCode of this error.
func (e *StorageError) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

// ErrorCode represents the category of a storage error.
//
// ErrorCode implements error so that the codes can be used directly as
// errors.Is targets.
type ErrorCode int

const (
	errUnknown ErrorCode = iota

	// ErrInvalidLocation indicates a URL that cannot be served: unregistered
	// scheme, scheme mismatch, or a URL that cannot be mapped to a native path
	ErrInvalidLocation

	// ErrConstructionFailure indicates a backend could not be built
	// (root canonicalization failed, native client could not connect, bad options)
	ErrConstructionFailure

	// ErrNotFound indicates the requested object doesn't exist
	ErrNotFound

	// ErrAlreadyExists indicates the destination of a conditional write,
	// copy or rename already exists
	ErrAlreadyExists

	// ErrPermissionDenied indicates the backend refused access
	ErrPermissionDenied

	// ErrNotSupported indicates the backend does not implement the operation
	ErrNotSupported

	// ErrIO indicates any other native failure
	ErrIO

	// ErrInvalidPath indicates a logical path that cannot be parsed
	ErrInvalidPath

	// ErrRangeNotSatisfiable indicates a byte range outside the object
	ErrRangeNotSatisfiable

	// ErrPrecondition indicates a failed conditional request (If-Match, ETag CAS)
	ErrPrecondition

	// ErrNotModified indicates the object matched If-None-Match or was not
	// modified since the given time
	ErrNotModified
)

// Error implements the error interface.
func (c ErrorCode) Error() string {
	switch c {
	case ErrInvalidLocation:
		return "invalid location"
	case ErrConstructionFailure:
		return "backend construction failed"
	case ErrNotFound:
		return "object not found"
	case ErrAlreadyExists:
		return "object already exists"
	case ErrPermissionDenied:
		return "permission denied"
	case ErrNotSupported:
		return "operation not supported"
	case ErrIO:
		return "i/o error"
	case ErrInvalidPath:
		return "invalid path"
	case ErrRangeNotSatisfiable:
		return "range not satisfiable"
	case ErrPrecondition:
		return "precondition failed"
	case ErrNotModified:
		return "not modified"
	default:
		return "unknown storage error"
	}
}

// NewError builds a StorageError.
func NewError(code ErrorCode, store, path string, err error) *StorageError {
	return &StorageError{Code: code, Store: store, Path: path, Err: err}
}

// Errorf builds a StorageError whose cause is a formatted message.
func Errorf(code ErrorCode, store, path, format string, args ...any) *StorageError {
	return &StorageError{Code: code, Store: store, Path: path, Err: fmt.Errorf(format, args...)}
}

// NotSupported returns the ErrNotSupported error for an operation.
func NotSupported(store, op string) *StorageError {
	return &StorageError{Code: ErrNotSupported, Store: store, Err: fmt.Errorf("%s is not implemented", op)}
}

// CodeOf returns the ErrorCode carried by err.
//
// Errors that are not StorageErrors are classified as ErrIO. A nil error
// returns the zero code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return errUnknown
	}
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return ErrIO
}
