package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConfiguration = errors.New("configuration error")
	ErrStorage       = errors.New("storage error")
)

// Machine-readable codes returned in the "error" field of API responses.
const (
	CodeValidation    = "validation_error"
	CodeInvalidBooth  = "invalid_booth"
	CodeNotFound      = "not_found"
	CodeAlreadyMarked = "already_marked"
	CodeConflict      = "conflict"
	CodeUnauthorized  = "unauthorized"
	CodeConfiguration = "configuration_error"
	CodeStorage       = "storage_error"
)

type AppError struct {
	Err     error  // sentinel
	Code    string // machine-readable code, empty means derive from Err
	Message string // human-readable error message
	Field   string // optional: field causing the error
	Cause   error  // optional: underlying failure, logged but never shown to callers
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is works on either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Detail is err's message with the cause appended, for logs and dev-mode
// responses. Error leaves the cause out.
func Detail(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Message + ": " + appErr.Cause.Error()
	}
	return err.Error()
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidBooth reports a well-formed booth id that is not on the card.
func InvalidBooth(boothID string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeInvalidBooth,
		Message: fmt.Sprintf("booth %s is not a valid booth", boothID),
		Field:   "booth",
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    CodeConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// AlreadyMarked is returned when a booth slot was filled by an earlier scan.
func AlreadyMarked(boothID string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    CodeAlreadyMarked,
		Message: fmt.Sprintf("stamp for %s already collected", boothID),
		Field:   "booth",
	}
}

// Unauthenticated rejects a request whose signature did not verify.
// HTTP handlers map this to 401 Unauthorized.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func Misconfigured(cause error) *AppError {
	return &AppError{
		Err:     ErrConfiguration,
		Code:    CodeConfiguration,
		Message: "storage is not configured correctly",
		Cause:   cause,
	}
}

// StorageFailed wraps a backend failure during op. The message stays generic;
// the cause travels along for logging.
func StorageFailed(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Code:    CodeStorage,
		Message: fmt.Sprintf("storage error while %s", op),
		Cause:   cause,
	}
}
