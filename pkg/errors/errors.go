package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Workflow error codes. Each one maps to a distinct user-facing
// message; they are never collapsed into a generic failure string.
const (
	ErrValidation ErrorCode = iota + 2000
	ErrInvalidIdentity
	ErrStoreWrite
	ErrFetch
	ErrLedgerRead
	ErrLedgerWrite
	ErrAlreadyApproved
	ErrInvalidIndex
	ErrInsufficientFunds
	ErrRewardTransfer
	ErrConflict
)

// CodeOf returns the error code carried by err, or ErrInternal if err
// is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NewValidation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func NewInvalidIdentity(identity string) *AppError {
	return &AppError{
		Code:    ErrInvalidIdentity,
		Message: fmt.Sprintf("invalid station identity %q: expected a 0x-prefixed 40-character hex address", identity),
	}
}

func NewStoreWrite(err error) *AppError {
	return &AppError{
		Code:    ErrStoreWrite,
		Message: "failed to write content to the blob store",
		Err:     err,
	}
}

func NewFetch(contentID string, err error) *AppError {
	return &AppError{
		Code:    ErrFetch,
		Message: fmt.Sprintf("failed to fetch content %s", contentID),
		Err:     err,
	}
}

func NewLedgerRead(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrLedgerRead,
		Message: fmt.Sprintf("ledger read %s failed", operation),
		Err:     err,
	}
}

func NewLedgerWrite(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrLedgerWrite,
		Message: fmt.Sprintf("ledger transaction %s failed", operation),
		Err:     err,
	}
}

func NewAlreadyApproved(index int, err error) *AppError {
	return &AppError{
		Code:    ErrAlreadyApproved,
		Message: fmt.Sprintf("report %d has already been approved", index),
		Err:     err,
	}
}

func NewInvalidIndex(index int, err error) *AppError {
	return &AppError{
		Code:    ErrInvalidIndex,
		Message: fmt.Sprintf("report index %d is out of range", index),
		Err:     err,
	}
}

func NewInsufficientFunds(err error) *AppError {
	return &AppError{
		Code:    ErrInsufficientFunds,
		Message: "contract balance cannot cover the reward payment",
		Err:     err,
	}
}

func NewRewardTransfer(err error) *AppError {
	return &AppError{
		Code:    ErrRewardTransfer,
		Message: "reward transfer to the station failed",
		Err:     err,
	}
}

func NewConflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}
