// internal/api/response/response.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/metrics"
)

// Meta accompanies every body. RequestID echoes the X-Request-ID the
// logging middleware assigned, so clients can quote it in bug reports.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail is the wire form of a core.Error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
	Meta  Meta        `json:"meta"`
}

// JSON writes data in the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, SuccessResponse{Data: data, Meta: meta(w)})
}

// Error writes err in the error envelope with an explicit status.
func Error(w http.ResponseWriter, status int, err error) {
	write(w, status, ErrorResponse{Error: Detail(err), Meta: meta(w)})
}

func meta(w http.ResponseWriter) Meta {
	return Meta{
		Timestamp: time.Now().UTC(),
		RequestID: w.Header().Get(metrics.RequestIDHeader),
	}
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// the status line is gone; a failed encode can only be dropped
	_ = json.NewEncoder(w).Encode(body)
}

// Fail writes err with the status StatusFor picks.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}

// Detail converts err into its wire form. Foreign errors are reported as
// INTERNAL_ERROR without their text.
func Detail(err error) ErrorDetail {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		detail.Field = coreErr.Field
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}
	return detail
}

var statusByCode = map[string]int{
	core.ErrSourceUnreadable.Code:  http.StatusBadRequest,
	core.ErrPluginNotFound.Code:    http.StatusUnprocessableEntity,
	core.ErrPluginSyntax.Code:      http.StatusUnprocessableEntity,
	core.ErrPluginRuntime.Code:     http.StatusUnprocessableEntity,
	core.ErrContractViolation.Code: http.StatusUnprocessableEntity,
	core.ErrPluginTimeout.Code:     http.StatusRequestTimeout,
	core.ErrSeriesTooLong.Code:     http.StatusRequestEntityTooLarge,
	core.ErrEmptySeries.Code:       http.StatusNotFound,
	core.ErrRecordNotFound.Code:    http.StatusNotFound,
	core.ErrInvalidSeries.Code:     http.StatusBadGateway,
	core.ErrDataUnavailable.Code:   http.StatusBadGateway,
	core.ErrLLMFailed.Code:         http.StatusBadGateway,
	core.ErrConfigInvalid.Code:     http.StatusBadRequest,
	core.ErrConfigMissing.Code:     http.StatusBadRequest,
}

// StatusFor maps an error code to an HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	if status, ok := statusByCode[core.Code(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
