// Package controller maps engine results and errors onto HTTP responses.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nimburion/docquery/pkg/middleware/requestid"
	"github.com/nimburion/docquery/pkg/query"
)

// Stable error codes returned to clients.
const (
	CodeMalformedQuery    = "validation.malformed_query"
	CodeInvalidBody       = "validation.invalid_body"
	CodeCollectionMissing = "collection.not_found"
	CodeNotFound          = "resource.not_found"
	CodeConflict          = "resource.conflict"
	CodeStoreFailure      = "internal.store_failure"
	CodeInternal          = "internal.error"
)

// AppError is an error with a stable code and an HTTP status.
type AppError struct {
	Code            string
	FallbackMessage string
	Details         map[string]interface{}
	HTTPStatus      int
	Cause           error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	label := e.Code
	if e.FallbackMessage != "" {
		label = e.FallbackMessage
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", label, e.Cause)
	}
	return label
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError creates an AppError with code and message.
func NewError(code, message string, status int, cause error) *AppError {
	return &AppError{Code: code, FallbackMessage: message, HTTPStatus: status, Cause: cause}
}

// WithDetails sets structured error details.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// NewValidationError reports a request that could not be understood.
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return NewError(CodeInvalidBody, message, http.StatusBadRequest, nil).WithDetails(details)
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	Message   string                 `json:"message,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// MapError converts err into a status and body. Engine errors are mapped by
// kind; store causes are never echoed to the client.
func MapError(ctx context.Context, err error) (int, ErrorResponse) {
	requestID := requestid.GetRequestID(ctx)

	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = fromQueryError(err)
	}
	if appErr == nil {
		return http.StatusInternalServerError, ErrorResponse{
			Error:     "internal_server_error",
			Code:      CodeInternal,
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		}
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = inferStatusFromCode(appErr.Code)
	}
	message := appErr.FallbackMessage
	if message == "" {
		message = "an unexpected error occurred"
	}

	return status, ErrorResponse{
		Error:     errorCategory(status),
		Code:      appErr.Code,
		Message:   message,
		RequestID: requestID,
		Details:   appErr.Details,
	}
}

func fromQueryError(err error) *AppError {
	var qe *query.Error
	if !errors.As(err, &qe) {
		return nil
	}

	details := map[string]interface{}{}
	if qe.Op != "" {
		details["operation"] = qe.Op
	}
	if qe.Param != "" {
		details["parameter"] = qe.Param
	}
	if len(details) == 0 {
		details = nil
	}

	detail := func(fallback string) string {
		if qe.Err != nil {
			return qe.Err.Error()
		}
		return fallback
	}

	switch qe.Kind {
	case query.KindMalformedQuery:
		return NewError(CodeMalformedQuery, detail("malformed query"), http.StatusBadRequest, err).WithDetails(details)
	case query.KindUnknownCollection:
		return NewError(CodeCollectionMissing, detail("unknown collection"), http.StatusNotFound, err).WithDetails(details)
	case query.KindNotFound:
		return NewError(CodeNotFound, detail("not found"), http.StatusNotFound, err).WithDetails(details)
	case query.KindConflict:
		return NewError(CodeConflict, detail("conflict"), http.StatusConflict, err).WithDetails(details)
	case query.KindStoreFailure:
		return NewError(CodeStoreFailure, "the document store could not complete the request", http.StatusInternalServerError, err).WithDetails(details)
	default:
		return nil
	}
}

func errorCategory(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= 500 {
			return "internal_server_error"
		}
		return "application_error"
	}
}

func inferStatusFromCode(code string) int {
	lowerCode := strings.ToLower(strings.TrimSpace(code))
	switch {
	case strings.HasPrefix(lowerCode, "validation."):
		return http.StatusBadRequest
	case strings.Contains(lowerCode, "not_found"):
		return http.StatusNotFound
	case strings.HasSuffix(lowerCode, ".conflict"):
		return http.StatusConflict
	case strings.HasPrefix(lowerCode, "internal."):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
