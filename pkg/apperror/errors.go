package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Transient  bool   `json:"-"` // retryable dependency failure
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Intake (INTAKE) — rejected before any record exists ----

func ErrPayloadTooLarge() *AppError {
	return New("INTAKE_001", "Payload exceeds allowed size", http.StatusRequestEntityTooLarge)
}

func ErrUnsupportedContentType() *AppError {
	return New("INTAKE_002", "Unsupported content type", http.StatusUnsupportedMediaType)
}

// ErrUnknownEndpoint deliberately carries no hint of whether the category
// exists: unknown and inactive categories are indistinguishable to callers.
func ErrUnknownEndpoint() *AppError {
	return New("INTAKE_003", "Not found", http.StatusNotFound)
}

func ErrIntakeFailed(err error) *AppError {
	return Wrap("INTAKE_004", "Unable to accept notification", http.StatusBadRequest, err)
}

// ---- Authentication (AUTH) — internal API surface ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Domain (NOTIF / CAT) ----

func ErrNotificationNotFound() *AppError {
	return New("NOTIF_001", "Notification not found", http.StatusNotFound)
}

func ErrRestrictedUpdate(field string) *AppError {
	return New("NOTIF_002", fmt.Sprintf("Field %q is not updatable through this endpoint", field), http.StatusBadRequest)
}

func ErrCategoryInUse() *AppError {
	return New("CAT_001", "Category has referencing notifications and cannot be deleted", http.StatusConflict)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an unexpected internal error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// TransientDependency marks a dependency failure (store or queue unreachable)
// as retryable by the task dispatcher.
func TransientDependency(message string, err error) *AppError {
	e := Wrap("SYS_002", message, http.StatusServiceUnavailable, err)
	e.Transient = true
	return e
}

// IsTransient reports whether err (or anything it wraps) is a retryable
// dependency failure.
func IsTransient(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Transient
	}
	return false
}

// Validation returns a generic request-validation error. It carries its own
// code: the INTAKE_ family is reserved for the webhook endpoint.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
