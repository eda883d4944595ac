// internal/core/errors_test.go
package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrPluginSyntax, ErrPluginSyntax) {
		t.Error("same error should match")
	}
	if errors.Is(ErrPluginSyntax, ErrPluginNotFound) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrDataUnavailable, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrDataUnavailable.Code {
		t.Error("code not preserved")
	}
	if !errors.Is(fmt.Errorf("context: %w", wrapped), ErrDataUnavailable) {
		t.Error("wrapped error should match by code through fmt wrapping")
	}
}

func TestMissingField(t *testing.T) {
	err := MissingField("position")
	if !errors.Is(err, ErrContractViolation) {
		t.Error("missing field should be a contract violation")
	}
	if err.Field != "position" {
		t.Errorf("Field = %q, want position", err.Field)
	}
	if !strings.Contains(err.Error(), `"position"`) {
		t.Errorf("error string should name the field: %s", err.Error())
	}
}

func TestCode(t *testing.T) {
	if got := Code(WrapError(ErrPluginTimeout, nil)); got != "PLUGIN_TIMEOUT" {
		t.Errorf("Code() = %q, want PLUGIN_TIMEOUT", got)
	}
	if got := Code(errors.New("plain")); got != "" {
		t.Errorf("Code() of foreign error = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"foreign", errors.New("boom"), "Unexpected error: boom"},
		{"contract", MissingField("returns"), `missing "returns"`},
		{"runtime with cause", WrapError(ErrPluginRuntime, errors.New("division by zero")), "division by zero"},
		{"empty", ErrEmptySeries, "No price data"},
		{"non-finite output", WrapError(ErrInvalidSeries, errors.New("position is infinite at 2024-01-02")), "strategy output is malformed.\nposition is infinite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("UserMessage() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("UserMessage() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}
