// Package errors provides a single tagged error variant for the Aid API, collapsing
// the taxonomy in spec §7 into one type with an HTTP status and a retryability flag,
// plus the HTTP envelope writer handlers use to surface it.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
)

// Code enumerates the Aid API's error codes (spec §6).
type Code string

const (
	CodeEncoderNotAuthorized Code = "ENCODER_NOT_AUTHORIZED"
	CodeEncoderInactive      Code = "ENCODER_INACTIVE"
	CodeJobNotFound          Code = "JOB_NOT_FOUND"
	CodeJobAlreadyAssigned   Code = "JOB_ALREADY_ASSIGNED"
	CodeJobAlreadyCompleted  Code = "JOB_ALREADY_COMPLETED"
	CodeJobNotOwned          Code = "JOB_NOT_OWNED"
	CodeInvalidCID           Code = "INVALID_CID"
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeInternalError        Code = "INTERNAL_ERROR"
)

// APIError is the one tagged error variant every Aid component returns. Handlers map it
// directly to an HTTP status; background workers only ever log it.
type APIError struct {
	Code      Code   `json:"code"`
	Message   string `json:"error"`
	Status    int    `json:"-"`
	Err       error  `json:"-"`
	retryable bool
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller is expected to retry this failure, per spec §7:
// transient store errors are retryable, validation/ownership/concurrency errors are not.
func (e *APIError) Retryable() bool {
	return e.retryable
}

func newErr(code Code, status int, message string, err error, retryable bool) *APIError {
	return &APIError{Code: code, Message: message, Status: status, Err: err, retryable: retryable}
}

func NotAuthorized(msg string) *APIError {
	return newErr(CodeEncoderNotAuthorized, http.StatusForbidden, msg, nil, false)
}

func Inactive(msg string) *APIError {
	return newErr(CodeEncoderInactive, http.StatusForbidden, msg, nil, false)
}

func NotFound(msg string) *APIError {
	return newErr(CodeJobNotFound, http.StatusNotFound, msg, nil, false)
}

func AlreadyAssigned(msg string) *APIError {
	return newErr(CodeJobAlreadyAssigned, http.StatusConflict, msg, nil, false)
}

func AlreadyCompleted(msg string) *APIError {
	return newErr(CodeJobAlreadyCompleted, http.StatusConflict, msg, nil, false)
}

func NotOwned(msg string) *APIError {
	return newErr(CodeJobNotOwned, http.StatusNotFound, msg, nil, false)
}

func InvalidCID(msg string) *APIError {
	return newErr(CodeInvalidCID, http.StatusBadRequest, msg, nil, false)
}

func InvalidRequest(msg string) *APIError {
	return newErr(CodeInvalidRequest, http.StatusBadRequest, msg, nil, false)
}

// Internal wraps a transient/unexpected failure (e.g. store unreachable). Per spec §7 these
// are logged and returned as 500 with a generic message; callers are expected to retry.
func Internal(msg string, err error) *APIError {
	return newErr(CodeInternalError, http.StatusInternalServerError, msg, err, true)
}

// WriteJSON writes the Aid API's standard error envelope: {success:false, error, code}.
func WriteJSON(w http.ResponseWriter, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)

	body := map[string]any{
		"success": false,
		"error":   apiErr.Message,
		"code":    apiErr.Code,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.LogNoRequestID("error writing HTTP error envelope", "error", err)
	}
}
