package errors

import (
	"errors"
	"fmt"
)

// Generic errors shared across the service

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")
)

// Data provider errors; the pipeline treats any of these as retryable agent failures

var (
	// ErrProviderUnavailable indicates a data provider could not be reached
	ErrProviderUnavailable = errors.New("data provider unavailable")

	// ErrProviderRateLimited indicates the provider rejected the call due to rate limits
	ErrProviderRateLimited = errors.New("data provider rate limited")

	// ErrProviderInvalidResponse indicates the provider returned an unparseable payload
	ErrProviderInvalidResponse = errors.New("data provider returned invalid response")
)

// Synthesis errors

var (
	// ErrSynthesisTimeout indicates the synthesis call exceeded its deadline
	ErrSynthesisTimeout = errors.New("synthesis timeout")

	// ErrSchemaInvalid indicates the synthesis output failed schema validation.
	// Non-retryable: reattempting with the same context cannot help.
	ErrSchemaInvalid = errors.New("synthesis output failed schema validation")
)

// Orchestration and persistence errors

var (
	// ErrRunInProgress indicates a run for the same report type is already holding the lock
	ErrRunInProgress = errors.New("run already in progress for report type")

	// ErrCyclicDependency indicates the agent dependency graph contains a cycle
	ErrCyclicDependency = errors.New("cyclic agent dependency")

	// ErrUnknownDependency indicates an agent declares a dependency that is not registered
	ErrUnknownDependency = errors.New("unknown agent dependency")

	// ErrUnknownReportType indicates no agent graph is registered for the report type
	ErrUnknownReportType = errors.New("unknown report type")

	// ErrStoreConflict indicates a concurrent write raced on the same report key
	ErrStoreConflict = errors.New("report store write conflict")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// IsRetryable reports whether an agent-level error is eligible for retry.
// Provider failures and timeouts are retryable; schema validation is not.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrSchemaInvalid):
		return false
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrProviderRateLimited),
		errors.Is(err, ErrProviderInvalidResponse),
		errors.Is(err, ErrTimeout):
		return true
	}
	return true
}
