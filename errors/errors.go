package errors

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

type ErrorType string

const (
	ValidationError ErrorType = "VALIDATION_ERROR"
	NotFoundError   ErrorType = "NOT_FOUND"
	UpstreamError   ErrorType = "UPSTREAM_ERROR"
	DecodeError     ErrorType = "DECODE_ERROR"
	DomainError     ErrorType = "DOMAIN_ERROR"
	NoLocationError ErrorType = "NO_LOCATION_DATA"
	ServerError     ErrorType = "SERVER_ERROR"
)

// snippetLimit bounds how much upstream response body is carried in an error.
const snippetLimit = 100

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Raw
}

// GetHTTPStatus returns the HTTP status an error should surface as.
func (e *AppError) GetHTTPStatus() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return getHTTPStatus(e.Type)
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: getHTTPStatus(errType),
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

// Snippet truncates an upstream response body for inclusion in error
// details. Control characters are dropped so the snippet stays loggable.
func Snippet(body []byte) string {
	s := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, string(body))
	s = strings.TrimSpace(s)
	if len(s) > snippetLimit {
		cut := snippetLimit
		// Back off to a rune boundary so the cut never splits a
		// multibyte character.
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut]
	}
	return s
}

// Helper functions for common errors

func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NotFound(entity string, query interface{}) *AppError {
	return &AppError{
		Type:       NotFoundError,
		Message:    fmt.Sprintf("%s not found", entity),
		Detail:     fmt.Sprintf("query: %v", query),
		HTTPStatus: http.StatusNotFound,
	}
}

// UpstreamFailed reports a non-success status from an external collaborator,
// carrying a truncated snippet of the offending response body.
func UpstreamFailed(collaborator string, status int, body []byte) *AppError {
	return &AppError{
		Type:       UpstreamError,
		Message:    fmt.Sprintf("%s request failed", collaborator),
		Detail:     fmt.Sprintf("status %d: %s", status, Snippet(body)),
		HTTPStatus: http.StatusBadGateway,
	}
}

// DecodeFailed reports an upstream body that could not be parsed as the
// expected structure. Distinct from UpstreamFailed: the transport succeeded.
func DecodeFailed(collaborator string, err error, body []byte) *AppError {
	return &AppError{
		Type:       DecodeError,
		Message:    fmt.Sprintf("%s returned an unparseable response", collaborator),
		Detail:     fmt.Sprintf("%v: %s", err, Snippet(body)),
		HTTPStatus: http.StatusBadGateway,
		Raw:        err,
	}
}

// Domainf reports a business-level failure explicitly signaled by a
// well-formed upstream response.
func Domainf(format string, args ...interface{}) *AppError {
	return &AppError{
		Type:       DomainError,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NoLocationData is returned by tools that need a resolved environment
// record before any location query has succeeded.
func NoLocationData() *AppError {
	return &AppError{
		Type:       NoLocationError,
		Message:    "No location data",
		Detail:     "Resolve a location before using this tool",
		HTTPStatus: http.StatusConflict,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:       ServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case UpstreamError, DecodeError:
		return http.StatusBadGateway
	case DomainError:
		return http.StatusUnprocessableEntity
	case NoLocationError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
