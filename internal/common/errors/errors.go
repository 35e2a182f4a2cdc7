// Package errors provides the coded error taxonomy surfaced by the forms client.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Transport level: network failures and non-2xx HTTP statuses.
	ErrCodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeRequestEncoding  ErrorCode = "REQUEST_ENCODING_FAILED"

	// Protocol level: the envelope itself.
	ErrCodeRPCError          ErrorCode = "RPC_ERROR"
	ErrCodeEmptyResponse     ErrorCode = "EMPTY_RESPONSE"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"

	// Shape validation of a decoded result.
	ErrCodeInvalidResponse ErrorCode = "INVALID_RESPONSE"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured client error.
//
// Error() returns Message only, so that a server-supplied RPC message reaches
// the caller verbatim. Code and Details are for logs and errors.Is matching.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a StandardError with the same code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is matching by code.
var (
	ErrTransport         = &StandardError{Code: ErrCodeTransportFailure}
	ErrRequestEncoding   = &StandardError{Code: ErrCodeRequestEncoding}
	ErrRPC               = &StandardError{Code: ErrCodeRPCError}
	ErrEmptyResponse     = &StandardError{Code: ErrCodeEmptyResponse}
	ErrMalformedResponse = &StandardError{Code: ErrCodeMalformedResponse}
	ErrInvalidResponse   = &StandardError{Code: ErrCodeInvalidResponse}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewTransportError wraps a network-level failure. statusCode is 0 when no
// HTTP response was received.
func NewTransportError(statusCode int, details string, cause error) *StandardError {
	msg := "transport failure"
	if statusCode > 0 {
		msg = fmt.Sprintf("request failed with status code %d", statusCode)
	} else if cause != nil {
		msg = cause.Error()
	}
	return &StandardError{
		Code:      ErrCodeTransportFailure,
		Message:   msg,
		Details:   details,
		Retryable: isRetryableStatus(statusCode) || statusCode == 0,
		Metadata:  map[string]interface{}{"statusCode": statusCode},
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewRequestEncodingError is returned when a request body cannot be marshaled.
func NewRequestEncodingError(method string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestEncoding,
		Message:   fmt.Sprintf("failed to encode %s request", method),
		Details:   cause.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"method": method},
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewRPCError carries the server-reported error object. message is kept verbatim.
func NewRPCError(method string, code int, message string, data string) *StandardError {
	meta := map[string]interface{}{"method": method, "rpcCode": code}
	if data != "" {
		meta["data"] = data
	}
	return &StandardError{
		Code:      ErrCodeRPCError,
		Message:   message,
		Retryable: false,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyResponseError is returned when an envelope has neither result nor error.
func NewEmptyResponseError(method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyResponse,
		Message:   fmt.Sprintf("empty response from %s", method),
		Details:   "response carries neither result nor error",
		Retryable: false,
		Metadata:  map[string]interface{}{"method": method},
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedResponseError is returned when the body is not a JSON-RPC envelope.
func NewMalformedResponseError(method string, cause error) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   fmt.Sprintf("malformed response from %s", method),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"method": method},
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidResponseError is a shape-validation failure. message is the fixed,
// operation-specific text; details holds the schema violations and is never
// part of Error().
func NewInvalidResponseError(operation, message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidResponse,
		Message:   message,
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

func isRetryableStatus(status int) bool {
	switch status {
	case 502, 503, 504:
		return true
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "TRANSPORT") || strings.HasPrefix(codeStr, "REQUEST"):
		return "TRANSPORT"
	case strings.HasPrefix(codeStr, "RPC") || strings.Contains(codeStr, "EMPTY") || strings.Contains(codeStr, "MALFORMED"):
		return "PROTOCOL"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// CodeOf extracts the error code from err, or ErrCodeInternal when err is not
// a StandardError.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if se, ok := err.(*StandardError); ok {
			return se.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrCodeInternal
}
