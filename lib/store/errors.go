package store

import (
	"errors"
	"fmt"

	"github.com/kvmkrao/hdf5/lib/db"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCNotFound                            // 4: Path, object or key does not exist.
	RetCAlreadyExists                       // 5: Object exists (lost a creation race).
	RetCIntegrityError                      // 6: Scratch pad or transfer checksum mismatch.
	RetCDataCorruption                      // 7: Value checksum mismatch on write.
	RetCResourceExhausted                   // 8: Allocation or buffer size failure.
	RetCTypeConversionFailed                // 9: Datatype conversion failed.
	RetCTransferFailed                      // 10: Bulk pull, push or wait failed.
	RetCInvalidHandle                       // 11: Handle is closed, unknown or has the wrong mode.
	RetCUnknown                             // 12: Collaborator failed without a diagnosis.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCAlreadyExists:
		return "AlreadyExists"
	case RetCIntegrityError:
		return "IntegrityError"
	case RetCDataCorruption:
		return "DataCorruption"
	case RetCResourceExhausted:
		return "ResourceExhausted"
	case RetCTypeConversionFailed:
		return "TypeConversionFailed"
	case RetCTransferFailed:
		return "TransferFailed"
	case RetCInvalidHandle:
		return "InvalidHandle"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is matches any *Error with the same code, so errors.Is(err, store.ErrNotFound) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Sentinels for errors.Is
var (
	ErrNotFound             = NewError(RetCNotFound, "not found")
	ErrAlreadyExists        = NewError(RetCAlreadyExists, "already exists")
	ErrIntegrity            = NewError(RetCIntegrityError, "integrity error")
	ErrDataCorruption       = NewError(RetCDataCorruption, "data corruption")
	ErrResourceExhausted    = NewError(RetCResourceExhausted, "resource exhausted")
	ErrTypeConversionFailed = NewError(RetCTypeConversionFailed, "type conversion failed")
	ErrTransferFailed       = NewError(RetCTransferFailed, "transfer failed")
	ErrInvalidHandle        = NewError(RetCInvalidHandle, "invalid handle")
)

// CodeOf returns the return code carried by err.
// nil yields RetCSuccess, errors that are not *Error yield RetCUnknown.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCUnknown
}

// Wrap converts err into an *Error with the given code unless it already is one.
// The message is prefixed with msg.
func Wrap(err error, code RetCode, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return NewError(e.Code, msg+": "+e.Msg)
	}
	return NewError(code, msg+": "+err.Error())
}

// FromDB maps the errors of a db.ObjectDB to store errors.
func FromDB(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrObjectExists), errors.Is(err, db.ErrScratchSet):
		return NewError(RetCAlreadyExists, err.Error())
	case errors.Is(err, db.ErrObjectNotFound), errors.Is(err, db.ErrKeyNotFound), errors.Is(err, db.ErrScratchMissing):
		return NewError(RetCNotFound, err.Error())
	case errors.Is(err, db.ErrWrongType):
		return NewError(RetCInvalidOperation, err.Error())
	default:
		return NewError(RetCInternalError, err.Error())
	}
}
