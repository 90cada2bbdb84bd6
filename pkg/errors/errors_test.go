package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeArchiveIntegrity, cause, "read entry")

	if err.Code != ErrCodeArchiveIntegrity {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeArchiveIntegrity)
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeNotFound, "test"),
			code:     ErrCodeNotFound,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeNotFound, "test"),
			code:     ErrCodeUnauthorized,
			expected: false,
		},
		{
			name:     "outer code",
			err:      Wrap(ErrCodeCanceled, New(ErrCodeNotFound, "inner"), "outer"),
			code:     ErrCodeCanceled,
			expected: true,
		},
		{
			name:     "inner code",
			err:      Wrap(ErrCodeInternal, New(ErrCodeUnauthorized, "inner"), "outer"),
			code:     ErrCodeUnauthorized,
			expected: true,
		},
		{
			name:     "through fmt wrapping",
			err:      fmt.Errorf("resolve: %w", New(ErrCodeNotFound, "gone")),
			code:     ErrCodeNotFound,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeConfiguration, "x")); got != ErrCodeConfiguration {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeConfiguration)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode() = %v, want empty", got)
	}
	if got := GetCode(nil); got != "" {
		t.Errorf("GetCode(nil) = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidInput, "friendly message")); got != "friendly message" {
		t.Errorf("UserMessage() = %v, want %v", got, "friendly message")
	}
	if got := UserMessage(errors.New("plain error")); got != "plain error" {
		t.Errorf("UserMessage() = %v, want %v", got, "plain error")
	}
}

func TestIsHard(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unauthorized", New(ErrCodeUnauthorized, "denied"), true},
		{"configuration", New(ErrCodeConfiguration, "bad map"), true},
		{"integrity", New(ErrCodeArchiveIntegrity, "short"), true},
		{"context canceled", context.Canceled, true},
		{"canceled code", Canceled(context.DeadlineExceeded), true},
		{"not found", New(ErrCodeNotFound, "gone"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHard(tt.err); got != tt.want {
				t.Errorf("IsHard() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDependencyError(t *testing.T) {
	cause := New(ErrCodeNotFound, "missing")
	err := AtDependency("Keyword", "K1", cause)

	if err.Error() != "Keyword:K1: NOT_FOUND: missing" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !Is(err, ErrCodeNotFound) {
		t.Error("code should survive dependency wrapping")
	}

	typ, id, ok := FailedDependency(fmt.Errorf("job: %w", err))
	if !ok || typ != "Keyword" || id != "K1" {
		t.Errorf("FailedDependency() = %q, %q, %v", typ, id, ok)
	}

	if again := AtDependency("Keyword", "K1", err); again != err {
		t.Error("wrapping the same dependency twice should be a no-op")
	}
	if AtDependency("Keyword", "K1", nil) != nil {
		t.Error("AtDependency(nil) should be nil")
	}
	if _, _, ok := FailedDependency(errors.New("plain")); ok {
		t.Error("plain error has no dependency")
	}
}
