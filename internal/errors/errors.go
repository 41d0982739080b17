// Package errors provides error handling utilities.
package errors

import (
	"fmt"
)

// Kind identifies the category of error
type Kind string

const (
	// KindSpec indicates a malformed rule specification; fatal to the run
	KindSpec Kind = "SPEC_ERROR"

	// KindStructural indicates a column count/name mismatch; fatal to one catalog
	KindStructural Kind = "STRUCTURAL_ERROR"

	// KindExpression indicates a rule expression that failed to parse or evaluate
	KindExpression Kind = "EXPRESSION_ERROR"

	// KindInput indicates bad caller-supplied input
	KindInput Kind = "INPUT_ERROR"

	// KindNotSupported indicates an unsupported operation
	KindNotSupported Kind = "NOT_SUPPORTED"

	// KindInternal indicates an internal error
	KindInternal Kind = "INTERNAL_ERROR"
)

// Reason narrows a Kind to the exact failure within its taxonomy
type Reason string

const (
	// Spec reasons
	ReasonMissingSection      Reason = "MISSING_SECTION"
	ReasonInvalidFieldType    Reason = "INVALID_FIELD_TYPE"
	ReasonDuplicateCatalogRef Reason = "DUPLICATE_CATALOG_REFERENCE"
	ReasonDuplicateField      Reason = "DUPLICATE_FIELD"
	ReasonMalformedRule       Reason = "MALFORMED_RULE"

	// Structural reasons
	ReasonColumnCountMismatch Reason = "COLUMN_COUNT_MISMATCH"
	ReasonColumnNameMismatch  Reason = "COLUMN_NAME_MISMATCH"
	ReasonMissingInput        Reason = "MISSING_INPUT"

	// Expression reasons
	ReasonParseError      Reason = "PARSE_ERROR"
	ReasonUnknownOperator Reason = "UNKNOWN_OPERATOR"
	ReasonTypeMismatch    Reason = "TYPE_MISMATCH"
)

// Error represents a domain error with context
type Error struct {
	Kind    Kind                   `json:"kind"`
	Reason  Reason                 `json:"reason,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	head := string(e.Kind)
	if e.Reason != "" {
		head = fmt.Sprintf("%s/%s", e.Kind, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", head, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", head, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(kind Kind, reason Reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Newf creates a new formatted error
func Newf(kind Kind, reason Reason, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with context
func Wrap(kind Kind, reason Reason, message string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Cause: cause}
}

// IsKind checks if an error is of a specific kind
func IsKind(err error, k Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == k
	}
	return false
}

// ReasonOf returns the reason of a domain error, or "" for foreign errors
func ReasonOf(err error) Reason {
	if e, ok := err.(*Error); ok {
		return e.Reason
	}
	return ""
}

// Spec creates a specification error
func Spec(reason Reason, message string) *Error {
	return New(KindSpec, reason, message)
}

// Specf creates a formatted specification error
func Specf(reason Reason, format string, args ...interface{}) *Error {
	return Newf(KindSpec, reason, format, args...)
}

// Structural creates a structural error
func Structural(reason Reason, message string) *Error {
	return New(KindStructural, reason, message)
}

// Expression creates an expression error
func Expression(reason Reason, message string) *Error {
	return New(KindExpression, reason, message)
}

// Expressionf creates a formatted expression error
func Expressionf(reason Reason, format string, args ...interface{}) *Error {
	return Newf(KindExpression, reason, format, args...)
}

// Input creates an input error
func Input(message string) *Error {
	return New(KindInput, "", message)
}

// NotSupported creates a not supported error
func NotSupported(operation string) *Error {
	return Newf(KindNotSupported, "", "operation not supported: %s", operation)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, "", message, cause)
}
