package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	cause := errors.New("deadline exceeded")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("nickname", "nickname is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "InvalidBooth wraps ErrValidation",
			err:       InvalidBooth("booth12"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "AlreadyMarked wraps ErrConflict",
			err:       AlreadyMarked("booth5"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthenticated wraps ErrUnauthorized",
			err:       Unauthenticated("bad signature"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Misconfigured wraps ErrConfiguration",
			err:       Misconfigured(cause),
			target:    ErrConfiguration,
			wantMatch: true,
		},
		{
			name:      "StorageFailed wraps ErrStorage",
			err:       StorageFailed("reading user", cause),
			target:    ErrStorage,
			wantMatch: true,
		},
		{
			name:      "StorageFailed exposes its cause",
			err:       StorageFailed("reading user", cause),
			target:    cause,
			wantMatch: true,
		},
		{
			name:      "wrapped AppError still matches",
			err:       fmt.Errorf("marking booth: %w", AlreadyMarked("booth1")),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Misconfigured does NOT match ErrStorage",
			err:       Misconfigured(cause),
			target:    ErrStorage,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
		wantCode    string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "abc123"),
			wantMessage: "user not found with id abc123",
			wantCode:    CodeNotFound,
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("nickname", "nickname must be 2-20 characters"),
			wantMessage: "nickname must be 2-20 characters",
			wantCode:    CodeValidation,
		},
		{
			name:        "InvalidBooth names the booth",
			err:         InvalidBooth("boothX"),
			wantMessage: "booth boothX is not a valid booth",
			wantCode:    CodeInvalidBooth,
		},
		{
			name:        "AlreadyMarked names the booth",
			err:         AlreadyMarked("booth5"),
			wantMessage: "stamp for booth5 already collected",
			wantCode:    CodeAlreadyMarked,
		},
		{
			name:        "StorageFailed keeps the cause out of the message",
			err:         StorageFailed("creating user", errors.New("rpc error: permission denied")),
			wantMessage: "storage error while creating user",
			wantCode:    CodeStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("service: %w", InvalidBooth("booth12"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As() did not find *AppError")
	}
	if appErr.Field != "booth" {
		t.Errorf("Field = %q, want %q", appErr.Field, "booth")
	}
}

func TestDetail(t *testing.T) {
	cause := errors.New("rpc error: code = Unavailable")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"with cause", StorageFailed("marking stamp", cause), "storage error while marking stamp: rpc error: code = Unavailable"},
		{"wrapped", fmt.Errorf("check: %w", StorageFailed("marking stamp", cause)), "storage error while marking stamp: rpc error: code = Unavailable"},
		{"no cause", NotFound("user", "u1"), "user not found with id u1"},
		{"plain error", cause, "rpc error: code = Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detail(tt.err); got != tt.want {
				t.Errorf("Detail() = %q, want %q", got, tt.want)
			}
		})
	}
}
