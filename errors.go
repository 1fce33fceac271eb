package ormapi

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/syssam/ormapi/privacy"
	"github.com/syssam/ormapi/schema/field"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("ormapi: record not found")

	// ErrValidation is returned when a payload or request parameter is invalid.
	ErrValidation = errors.New("ormapi: validation failed")

	// ErrDenied is returned when an authorization hook rejects an operation.
	ErrDenied = errors.New("ormapi: operation denied")
)

// ValidationError holds field-level validation messages.
type ValidationError struct {
	Messages field.Errors
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "ormapi: validation failed"
	}
	var sb strings.Builder
	sb.WriteString("ormapi: validation failed:")
	for _, k := range slices.Sorted(maps.Keys(e.Messages)) {
		fmt.Fprintf(&sb, " %s: %s;", k, strings.Join(e.Messages[k], " "))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Is reports whether the target error matches ValidationError.
func (e *ValidationError) Is(err error) bool {
	return err == ErrValidation
}

// NewValidationError returns a new ValidationError for the given messages.
func NewValidationError(msgs field.Errors) *ValidationError {
	return &ValidationError{Messages: msgs}
}

// ValidationErrorf returns a ValidationError with a single message for path.
func ValidationErrorf(path, format string, a ...any) *ValidationError {
	return &ValidationError{Messages: field.Errors{path: {fmt.Sprintf(format, a...)}}}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// AuthorizationError is returned when a hook or relation predicate denies
// an operation.
type AuthorizationError struct {
	Op      string // create, read, update, delete, attach or detach
	Model   string
	Message string // shown to the client
}

// Error returns the error string.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("ormapi: %s %s denied: %s", e.Op, e.Model, e.Message)
}

// Is reports whether the target error matches AuthorizationError.
func (e *AuthorizationError) Is(err error) bool {
	return err == ErrDenied
}

// IsAuthorizationError returns true if the error is an AuthorizationError.
func IsAuthorizationError(err error) bool {
	if err == nil {
		return false
	}
	var e *AuthorizationError
	return errors.As(err, &e)
}

// Authorize converts the decision of a hook into an AuthorizationError.
// Permitting decisions return nil. When the decision carries no message,
// fallback is used.
func Authorize(decision error, op, model, fallback string) error {
	if privacy.Allowed(decision) {
		return nil
	}
	msg := privacy.Message(decision)
	if msg == "" {
		msg = fallback
	}
	return &AuthorizationError{Op: op, Model: model, Message: msg}
}

// NotFoundError represents a failed lookup by primary key.
type NotFoundError struct {
	Model string
	ID    any
	// Nested is set when the id was referenced inside a payload rather than
	// in the request path.
	Nested bool
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("ormapi: %s not found (id=%v)", e.Model, e.ID)
	}
	return fmt.Sprintf("ormapi: %s not found", e.Model)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// NewNotFoundError returns a new NotFoundError for the given model and id.
func NewNotFoundError(model string, id any) *NotFoundError {
	return &NotFoundError{Model: model, ID: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// UnexpectedError wraps any failure outside the taxonomy, such as a driver
// error or a recovered panic.
type UnexpectedError struct {
	Err error
}

// Error returns the error string.
func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("ormapi: unexpected error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// Exception returns the dynamic type of the innermost wrapped error.
func (e *UnexpectedError) Exception() string {
	err := e.Err
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return fmt.Sprintf("%T", err)
}

// IsUnexpected returns true if the error is an UnexpectedError.
func IsUnexpected(err error) bool {
	if err == nil {
		return false
	}
	var e *UnexpectedError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("ormapi: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// QueryError wraps a store error raised while reading records.
type QueryError struct {
	Model string
	Op    string // e.g. "list", "count", "fetch", "eager-load"
	Err   error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	return fmt.Sprintf("ormapi: querying %s (%s): %v", e.Model, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(model, op string, err error) *QueryError {
	return &QueryError{Model: model, Op: op, Err: err}
}

// MutationError wraps a store error raised while writing records.
type MutationError struct {
	Model string
	Op    string // e.g. "create", "update", "delete", "attach", "detach"
	Err   error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("ormapi: %s %s: %v", e.Op, e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(model, op string, err error) *MutationError {
	return &MutationError{Model: model, Op: op, Err: err}
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "ormapi: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("ormapi: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// Status returns the HTTP status code of err.
func Status(err error) int {
	var nf *NotFoundError
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidationError(err):
		return http.StatusUnprocessableEntity
	case IsAuthorizationError(err):
		return http.StatusForbidden
	case errors.As(err, &nf):
		if nf.Nested {
			return http.StatusUnprocessableEntity
		}
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
