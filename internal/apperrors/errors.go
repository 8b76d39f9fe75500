package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrConfiguration is returned when provider credentials or the download
// security key are not configured.
type ErrConfiguration struct {
	Message string
}

// Error implements the error interface.
func (e *ErrConfiguration) Error() string {
	return e.Message
}

// Is allows for error checking with errors.Is().
func (e *ErrConfiguration) Is(target error) bool {
	_, ok := target.(*ErrConfiguration)
	return ok
}

// NewConfigurationError creates a new ErrConfiguration.
func NewConfigurationError(message string) *ErrConfiguration {
	return &ErrConfiguration{Message: message}
}

// ErrAuthorization is returned when the caller supplied a security key that
// does not match the configured one.
type ErrAuthorization struct {
	Message string
}

// Error implements the error interface.
func (e *ErrAuthorization) Error() string {
	return e.Message
}

// Is allows for error checking with errors.Is().
func (e *ErrAuthorization) Is(target error) bool {
	_, ok := target.(*ErrAuthorization)
	return ok
}

// NewAuthorizationError creates a new ErrAuthorization.
func NewAuthorizationError(message string) *ErrAuthorization {
	return &ErrAuthorization{Message: message}
}

// ErrValidation is returned for malformed or incomplete caller input.
// Status is the HTTP status the boundary should answer with (400 or 401).
type ErrValidation struct {
	Message string
	Status  int
}

// Error implements the error interface.
func (e *ErrValidation) Error() string {
	return e.Message
}

// Is allows for error checking with errors.Is().
func (e *ErrValidation) Is(target error) bool {
	_, ok := target.(*ErrValidation)
	return ok
}

// NewValidationError creates a new ErrValidation answered with 400.
func NewValidationError(message string) *ErrValidation {
	return &ErrValidation{Message: message, Status: http.StatusBadRequest}
}

// NewMissingCredentialError creates a new ErrValidation answered with 401.
func NewMissingCredentialError(message string) *ErrValidation {
	return &ErrValidation{Message: message, Status: http.StatusUnauthorized}
}

// ErrUpstream is returned when the subtitle provider answers with a non-2xx status.
type ErrUpstream struct {
	Operation  string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *ErrUpstream) Error() string {
	msg := fmt.Sprintf("%s failed: %d %s", e.Operation, e.StatusCode, http.StatusText(e.StatusCode))
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

// Is allows for error checking with errors.Is().
func (e *ErrUpstream) Is(target error) bool {
	_, ok := target.(*ErrUpstream)
	return ok
}

// ErrAggregateFailure is returned when every item of a download batch failed.
// Details holds one entry per requested file identifier.
type ErrAggregateFailure struct {
	Message string
	Details any
	Count   int
}

// Error implements the error interface.
func (e *ErrAggregateFailure) Error() string {
	return fmt.Sprintf("%s (%d failed)", e.Message, e.Count)
}

// Is allows for error checking with errors.Is().
func (e *ErrAggregateFailure) Is(target error) bool {
	_, ok := target.(*ErrAggregateFailure)
	return ok
}

// ErrArchiveBuild is returned when the zip archive could not be written completely.
type ErrArchiveBuild struct {
	Entry string
	Err   error
}

// Error implements the error interface.
func (e *ErrArchiveBuild) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("failed to build archive entry %s: %v", e.Entry, e.Err)
	}
	return fmt.Sprintf("failed to build archive: %v", e.Err)
}

// Unwrap returns the underlying stream error.
func (e *ErrArchiveBuild) Unwrap() error {
	return e.Err
}

// Is allows for error checking with errors.Is().
func (e *ErrArchiveBuild) Is(target error) bool {
	_, ok := target.(*ErrArchiveBuild)
	return ok
}

// StatusCode maps an error from the download or search pipeline to the HTTP
// status the boundary answers with. Unknown errors map to 500.
func StatusCode(err error) int {
	var validation *ErrValidation
	if errors.As(err, &validation) {
		if validation.Status != 0 {
			return validation.Status
		}
		return http.StatusBadRequest
	}
	if errors.Is(err, &ErrAuthorization{}) {
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
