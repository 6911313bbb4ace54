// Package errors provides structured error handling for RAD operations.
// It defines error codes, error types, and utilities for creating and
// inspecting errors raised by the recon pipeline.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Target and tool errors.
	CodeTargetInvalid ErrorCode = "TARGET_INVALID"
	CodeToolMissing   ErrorCode = "TOOL_MISSING"
	CodeScanFailed    ErrorCode = "SCAN_FAILED"

	// Dispatch errors.
	CodeDispatchFailed ErrorCode = "DISPATCH_FAILED"
	CodeNonZeroExit    ErrorCode = "NON_ZERO_EXIT"

	// File and parsing errors.
	CodeFileNotFound ErrorCode = "FILE_NOT_FOUND"
	CodeFileRead     ErrorCode = "FILE_READ"
	CodeParseFailed  ErrorCode = "PARSE_FAILED"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"
	CodeNotFound           ErrorCode = "NOT_FOUND"
)

// ReconError represents an error that occurred while running the recon
// pipeline against a target.
type ReconError struct {
	Code      ErrorCode
	Message   string
	Target    string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *ReconError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ReconError) Unwrap() error {
	return e.Cause
}

// NewReconError creates a new recon error with the specified code and message.
func NewReconError(code ErrorCode, message string) *ReconError {
	return &ReconError{
		Code:    code,
		Message: message,
	}
}

// NewReconErrorWithTarget creates a recon error for a specific target.
func NewReconErrorWithTarget(code ErrorCode, message, target string) *ReconError {
	return &ReconError{
		Code:    code,
		Message: message,
		Target:  target,
	}
}

// WrapReconError wraps an existing error as a recon error.
func WrapReconError(code ErrorCode, message string, err error) *ReconError {
	return &ReconError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// DispatchError represents a failure while invoking the content-discovery
// scanner against a single web port.
type DispatchError struct {
	Code     ErrorCode
	Message  string
	URL      string
	ExitCode int
	Cause    error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("[%s] %s (url: %s, exit: %d)", e.Code, e.Message, e.URL, e.ExitCode)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// NewDispatchError creates a new dispatch error.
func NewDispatchError(code ErrorCode, message, url string) *DispatchError {
	return &DispatchError{
		Code:    code,
		Message: message,
		URL:     url,
	}
}

// WrapDispatchError wraps an existing error as a dispatch error.
func WrapDispatchError(code ErrorCode, message, url string, err error) *DispatchError {
	return &DispatchError{
		Code:    code,
		Message: message,
		URL:     url,
		Cause:   err,
	}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
	}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message string, err error) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	switch e := err.(type) {
	case *ReconError:
		return e.Code == code
	case *DispatchError:
		return e.Code == code
	case *DatabaseError:
		return e.Code == code
	case *ConfigError:
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ReconError:
		return e.Code
	case *DispatchError:
		return e.Code
	case *DatabaseError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable determines if an error indicates a retryable condition.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeFileRead, CodeDatabaseConnection:
		return true
	default:
		return false
	}
}

// IsFatal determines if an error indicates a fatal condition that should
// stop the pipeline.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeConfiguration, CodeTargetInvalid, CodeToolMissing, CodeDatabaseMigration:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidTarget creates an error for invalid scan targets.
func ErrInvalidTarget(target string) *ReconError {
	return NewReconErrorWithTarget(CodeTargetInvalid, "Invalid target specification", target)
}

// ErrToolMissing creates an error for a required external tool that is not
// installed.
func ErrToolMissing(tool string) *ReconError {
	return NewReconError(CodeToolMissing, fmt.Sprintf("Required tool not found on PATH: %s", tool))
}

// ErrScanFailed creates an error for nmap execution failures.
func ErrScanFailed(target string, err error) *ReconError {
	return &ReconError{
		Code:    CodeScanFailed,
		Message: "Scan execution failed",
		Target:  target,
		Cause:   err,
	}
}

// ErrDatabaseConnection creates an error for database connection failures.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to open database", err)
}

// ErrDatabaseQuery creates an error for database query failures.
func ErrDatabaseQuery(operation string, err error) *DatabaseError {
	dbErr := WrapDatabaseError(CodeDatabaseQuery, "Database query failed", err)
	dbErr.Operation = operation
	return dbErr
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}
