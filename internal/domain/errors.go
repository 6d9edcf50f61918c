package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies failures surfaced by the service layer.
type ErrorCode string

const (
	CodeValidation      ErrorCode = "validation"
	CodeNotFound        ErrorCode = "not_found"
	CodeConflict        ErrorCode = "conflict"
	CodeUnauthenticated ErrorCode = "unauthenticated"
	CodeRetryable       ErrorCode = "retryable"
	CodeInternal        ErrorCode = "internal"
)

// Error is the canonical coded error returned by services.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
	case e.Op != "":
		return fmt.Sprintf("%s (%s)", e.Op, e.Code)
	case e.Message != "":
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a coded error.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates err with a code, keeping it reachable through errors.Is/As.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func ValidationError(op, message string) error {
	return NewError(CodeValidation, op, message, nil)
}

func NotFoundError(op, message string) error {
	return NewError(CodeNotFound, op, message, nil)
}

func ConflictError(op, message string) error {
	return NewError(CodeConflict, op, message, nil)
}

// IsCode checks whether err (or anything it wraps) carries code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the outermost code, or "" for uncoded errors.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if !errors.As(err, &coded) {
		return ""
	}
	return coded.Code
}

// MessageOf returns the human readable part of a coded error.
func MessageOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
