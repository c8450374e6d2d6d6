// Package errors provides a lightweight structured error type (PipelineError)
// for category-based classification of orchestration failures.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a pipeline error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryGit   ErrorCategory = "git"
	CategoryFeeds ErrorCategory = "feeds"
	CategoryTool  ErrorCategory = "tool"

	// Build and processing errors
	CategoryBuild      ErrorCategory = "build"
	CategoryOverride   ErrorCategory = "override"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryHistory  ErrorCategory = "history"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the pipeline
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// PipelineError is a structured error with category, severity, and context
type PipelineError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PipelineError
type ContextFields map[string]any

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new PipelineError
func New(category ErrorCategory, severity ErrorSeverity, message string) *PipelineError {
	return &PipelineError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new PipelineError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *PipelineError {
	return &PipelineError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// Fatal creates a new fatal PipelineError
func Fatal(category ErrorCategory, message string) *PipelineError {
	return New(category, SeverityFatal, message)
}

// WrapFatal creates a new fatal PipelineError that wraps an existing error
func WrapFatal(err error, category ErrorCategory, message string) *PipelineError {
	return Wrap(err, category, SeverityFatal, message)
}

// IsCategory checks if any PipelineError in the chain belongs to the category.
// errors.As would stop at the first PipelineError, masking an inner match
// behind a differently-categorized wrapper, so the chain is walked manually.
func IsCategory(err error, category ErrorCategory) bool {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok && pe.Category == category {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// GetCategory extracts the category from an error chain, or returns CategoryInternal if none is a PipelineError
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Category
	}
	return CategoryInternal
}
