package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
// Retries are owned by the invoking orchestrator; the class is a hint for it.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: transport errors, unexpected control-plane status codes.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassConflict indicates a resource state conflict.
	// Examples: a monitor with the same identifier already exists.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: invalid desired state, immutable field changes, missing resources.
	ErrorClassPermanent ErrorClass = "permanent"
)

// HandlerErrorCode is the error code reported to the invoking orchestrator.
type HandlerErrorCode string

const (
	ErrCodeInvalidRequest  HandlerErrorCode = "InvalidRequest"
	ErrCodeNotFound        HandlerErrorCode = "NotFound"
	ErrCodeNotUpdatable    HandlerErrorCode = "NotUpdatable"
	ErrCodeAlreadyExists   HandlerErrorCode = "AlreadyExists"
	ErrCodeInternalFailure HandlerErrorCode = "InternalFailure"
)

// Class returns the default error class for the code.
func (c HandlerErrorCode) Class() ErrorClass {
	switch c {
	case ErrCodeAlreadyExists:
		return ErrorClassConflict
	case ErrCodeInternalFailure:
		return ErrorClassTransient
	default:
		return ErrorClassPermanent
	}
}

// HandlerError represents a classified lifecycle error with context.
type HandlerError struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Code is the error code surfaced in the progress event.
	Code HandlerErrorCode `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// TypeName is the resource type the error relates to, if applicable.
	TypeName string `json:"type_name,omitempty"`

	// Identifier is the resource identifier that caused the error, if applicable.
	Identifier string `json:"identifier,omitempty"`

	// StatusCode is the control-plane HTTP status that produced the error, if any.
	StatusCode int `json:"status_code,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	if e.TypeName != "" && e.Identifier != "" {
		return fmt.Sprintf("[%s] %s (type=%s, identifier=%s)", e.Code, msg, e.TypeName, e.Identifier)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
// Two handler errors match when their codes match.
func (e *HandlerError) Is(target error) bool {
	t, ok := target.(*HandlerError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newHandlerError(code HandlerErrorCode, message string, err error) *HandlerError {
	return &HandlerError{
		Class:   code.Class(),
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewInvalidRequest creates an error for desired state the handler refuses to act on.
func NewInvalidRequest(message string) *HandlerError {
	return newHandlerError(ErrCodeInvalidRequest, message, nil)
}

// NewNotFound creates an error for a resource that is missing or cannot be identified.
func NewNotFound(typeName, identifier string) *HandlerError {
	if identifier == "" {
		identifier = "<unknown>"
	}
	e := newHandlerError(ErrCodeNotFound, fmt.Sprintf("Resource of type '%s' with identifier '%s' was not found.", typeName, identifier), nil)
	e.TypeName = typeName
	e.Identifier = identifier
	return e
}

// NewNotUpdatable creates an error for an attempted change to an immutable property.
func NewNotUpdatable(message string) *HandlerError {
	return newHandlerError(ErrCodeNotUpdatable, message, nil)
}

// NewAlreadyExists creates an error for a duplicate resource.
func NewAlreadyExists(typeName, identifier string) *HandlerError {
	e := newHandlerError(ErrCodeAlreadyExists, fmt.Sprintf("Resource of type '%s' with identifier '%s' already exists.", typeName, identifier), nil)
	e.TypeName = typeName
	e.Identifier = identifier
	return e
}

// NewInternalFailure creates an error for an unexpected failure.
func NewInternalFailure(message string, err error) *HandlerError {
	return newHandlerError(ErrCodeInternalFailure, message, err)
}

// WithStatusCode records the control-plane HTTP status on the error.
func (e *HandlerError) WithStatusCode(status int) *HandlerError {
	e.StatusCode = status
	return e
}

// WithResource adds resource context to an error.
func (e *HandlerError) WithResource(typeName, identifier string) *HandlerError {
	e.TypeName = typeName
	e.Identifier = identifier
	return e
}

// AsHandlerError returns err as a *HandlerError. Errors that carry no
// classification are wrapped as InternalFailure.
func AsHandlerError(err error) *HandlerError {
	if err == nil {
		return nil
	}
	var e *HandlerError
	if errors.As(err, &e) {
		return e
	}
	return NewInternalFailure(err.Error(), err)
}

// CodeOf returns the error code carried by err, or InternalFailure for
// unclassified errors. It returns the empty code for a nil error.
func CodeOf(err error) HandlerErrorCode {
	if err == nil {
		return ""
	}
	return AsHandlerError(err).Code
}

func hasCode(err error, code HandlerErrorCode) bool {
	var e *HandlerError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsInvalidRequest returns true if the error is an InvalidRequest error.
func IsInvalidRequest(err error) bool { return hasCode(err, ErrCodeInvalidRequest) }

// IsNotFound returns true if the error is a NotFound error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsNotUpdatable returns true if the error is a NotUpdatable error.
func IsNotUpdatable(err error) bool { return hasCode(err, ErrCodeNotUpdatable) }

// IsAlreadyExists returns true if the error is an AlreadyExists error.
func IsAlreadyExists(err error) bool { return hasCode(err, ErrCodeAlreadyExists) }

// IsInternalFailure returns true if the error is an InternalFailure error.
func IsInternalFailure(err error) bool { return hasCode(err, ErrCodeInternalFailure) }

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *HandlerError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *HandlerError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *HandlerError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable returns true if the orchestrator may retry the invocation.
// Only transient errors are retryable; conflicts need a changed desired state.
func IsRetryable(err error) bool {
	return IsTransient(err)
}
