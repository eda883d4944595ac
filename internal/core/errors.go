// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Field   string // set for CONTRACT_VIOLATION
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Field:   base.Field,
		Cause:   cause,
	}
}

// MissingField reports a required derived column absent from an augmented series.
func MissingField(name string) *Error {
	return &Error{
		Code:    ErrContractViolation.Code,
		Message: ErrContractViolation.Message,
		Field:   name,
	}
}

// Code extracts the code of a structured error, or "" for foreign errors.
func Code(err error) string {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	return ""
}

// Predefined errors
var (
	// Strategy source
	ErrSourceUnreadable = &Error{Code: "SOURCE_UNREADABLE", Message: "strategy source could not be read"}

	// Plugin errors
	ErrPluginNotFound    = &Error{Code: "PLUGIN_NOT_FOUND", Message: "strategy entry point not found"}
	ErrPluginSyntax      = &Error{Code: "PLUGIN_SYNTAX_ERROR", Message: "strategy source failed to compile"}
	ErrPluginRuntime     = &Error{Code: "PLUGIN_RUNTIME_ERROR", Message: "strategy execution failed"}
	ErrPluginTimeout     = &Error{Code: "PLUGIN_TIMEOUT", Message: "strategy exceeded its execution budget"}
	ErrSeriesTooLong     = &Error{Code: "SERIES_TOO_LONG", Message: "price series exceeds the configured length limit"}
	ErrContractViolation = &Error{Code: "CONTRACT_VIOLATION", Message: "strategy output is missing a required field"}
	ErrEmptySeries       = &Error{Code: "EMPTY_SERIES", Message: "price series is empty"}
	ErrInvalidSeries     = &Error{Code: "INVALID_SERIES", Message: "price series or strategy output is malformed"}
	ErrDataUnavailable   = &Error{Code: "DATA_UNAVAILABLE", Message: "historical data unavailable"}
	ErrRecordNotFound    = &Error{Code: "RECORD_NOT_FOUND", Message: "record not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// LLM errors
	ErrLLMFailed = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
)

var userMessages = map[string]string{
	ErrSourceUnreadable.Code:  "The strategy file could not be found or read.",
	ErrPluginNotFound.Code:    "The strategy must define an apply_strategy(df) function.",
	ErrPluginSyntax.Code:      "The strategy has a syntax error.",
	ErrPluginRuntime.Code:     "The strategy failed while running.",
	ErrPluginTimeout.Code:     "The strategy took too long and was stopped.",
	ErrSeriesTooLong.Code:     "The price history is longer than the configured limit.",
	ErrContractViolation.Code: "The strategy must define both 'position' and 'returns'.",
	ErrEmptySeries.Code:       "No price data was returned for this symbol.",
	ErrInvalidSeries.Code:     "The price data or strategy output is malformed.",
	ErrDataUnavailable.Code:   "Price data could not be downloaded.",
	ErrRecordNotFound.Code:    "The requested strategy does not exist.",
	ErrLLMFailed.Code:         "Strategy feedback could not be generated.",
	ErrConfigInvalid.Code:     "The configuration is invalid.",
	ErrConfigMissing.Code:     "Required configuration is missing.",
}

// UserMessage returns a human-readable message for err, including the
// underlying detail when there is one.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var coreErr *Error
	if !errors.As(err, &coreErr) {
		return "Unexpected error: " + err.Error()
	}
	msg, ok := userMessages[coreErr.Code]
	if !ok {
		msg = coreErr.Message
	}
	if coreErr.Field != "" {
		msg = fmt.Sprintf("%s (missing %q)", msg, coreErr.Field)
	}
	if coreErr.Cause != nil {
		msg = fmt.Sprintf("%s\n%v", msg, coreErr.Cause)
	}
	return msg
}
