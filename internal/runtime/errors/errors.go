package errors

import (
	sterrors "errors"
	"fmt"
	"time"
)

var (
	ErrServiceRequired      = sterrors.New("servicemirror: service is required")
	ErrHandlerRequired      = sterrors.New("servicemirror: handler function is required")
	ErrHandlerNameRequired  = sterrors.New("servicemirror: handler name is required")
	ErrConsumeQueueRequired = sterrors.New("servicemirror: consume queue is required")
	ErrPublisherRequired    = sterrors.New("servicemirror: publisher is required")
	ErrTopicRequired        = sterrors.New("servicemirror: topic is required")
	ErrConfigRequired       = sterrors.New("servicemirror: configuration is required")
	ErrLoggerRequired       = sterrors.New("servicemirror: logger is required")
	ErrEventPayloadRequired = sterrors.New("servicemirror: event payload is required")
)

// Domain sentinels returned by the query and validation surface.
var (
	ErrServiceNotFound    = sterrors.New("service not found")
	ErrServiceUnavailable = sterrors.New("service is not available")
	ErrServiceMismatch    = sterrors.New("service id does not match the comment target")
	ErrIdentityRequired   = sterrors.New("service identity is required")
)

// Correlation sentinels.
var (
	ErrTokenRequired      = sterrors.New("correlation token is required")
	ErrTokenInUse         = sterrors.New("correlation token is already pending")
	ErrCorrelationTimeout = sterrors.New("correlation timed out")
)

// ConfigValidationError wraps the joined validation errors of a Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "servicemirror: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// DomainError is a business rule violation tied to a specific service.
type DomainError struct {
	Kind      error
	ServiceID string
}

func (e *DomainError) Error() string {
	if e.ServiceID == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.ServiceID)
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

// NewDomainError builds a DomainError for the given sentinel.
func NewDomainError(kind error, serviceID string) error {
	return &DomainError{Kind: kind, ServiceID: serviceID}
}

// CorrelationTimeoutError reports an Await that hit its deadline.
type CorrelationTimeoutError struct {
	Token   string
	Timeout time.Duration
}

func (e *CorrelationTimeoutError) Error() string {
	return fmt.Sprintf("correlation timed out after %s waiting for token %q", e.Timeout, e.Token)
}

func (e *CorrelationTimeoutError) Unwrap() error {
	return ErrCorrelationTimeout
}

// RemoteError carries the errorMessage of a correlated reply.
type RemoteError struct {
	Token   string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error for request %q: %s", e.Token, e.Message)
}

// UnprocessableEventError marks a payload that could not be parsed into a
// service record. Retrying it is pointless.
type UnprocessableEventError struct {
	Strategy string
	Err      error
}

func (e *UnprocessableEventError) Error() string {
	return fmt.Sprintf("unprocessable event (decoded as %s): %v", e.Strategy, e.Err)
}

func (e *UnprocessableEventError) Unwrap() error {
	return e.Err
}
