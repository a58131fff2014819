package smklog

import (
	"errors"
	"fmt"
)

// =====================================
// Error Handling
// =====================================

// Error is the error type returned by every layer of the module. Message is
// the terse machine-readable reason; Display is the string meant for end
// users and falls back to Message when empty.
type Error struct {
	Type    ErrorType
	Message string
	Display string
	Code    string
	Context map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e Error) Is(target error) bool {
	if t, ok := target.(Error); ok {
		return e.Type == t.Type
	}
	return false
}

// DisplayMessage returns the user-facing message.
func (e Error) DisplayMessage() string {
	if e.Display != "" {
		return e.Display
	}
	return e.Message
}

// NewError creates a new Error
func NewError(errorType ErrorType, message string) Error {
	return Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error with a cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewErrorWithCode creates a new Error with a code
func NewErrorWithCode(errorType ErrorType, message string, code string) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Code:    code,
	}
}

// InvalidInput reports a missing or empty required argument.
func InvalidInput(message string) Error {
	return Error{Type: ErrorTypeInvalidInput, Message: message}
}

// NotFound reports that a required resource is absent.
func NotFound(resource string, id interface{}) Error {
	return Error{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
		Context: map[string]interface{}{"resource": resource, "id": id},
	}
}

// MultipleResults reports a single-result query that matched count rows.
func MultipleResults(resource string, count int) Error {
	return Error{
		Type:    ErrorTypeMultipleResults,
		Message: fmt.Sprintf("expected at most one %s, found %d", resource, count),
		Context: map[string]interface{}{"resource": resource, "count": count},
	}
}

// InvalidArgument reports an out-of-range or malformed argument.
func InvalidArgument(argument, message string) Error {
	return Error{
		Type:    ErrorTypeInvalidArgument,
		Message: fmt.Sprintf("%s: %s", argument, message),
		Context: map[string]interface{}{"argument": argument},
	}
}

// Persistence wraps a storage failure.
func Persistence(message string, cause error) Error {
	return Error{Type: ErrorTypePersistence, Message: message, Cause: cause}
}

// Migration reports a reconciliation step that failed irrecoverably.
func Migration(message string, cause error) Error {
	return Error{Type: ErrorTypeMigration, Message: message, Cause: cause}
}

// AsError extracts an Error from err's chain.
func AsError(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return Error{}, false
}

// TypeOf returns the ErrorType of err, or "" for foreign errors.
func TypeOf(err error) ErrorType {
	if e, ok := AsError(err); ok {
		return e.Type
	}
	return ""
}

// WithContext merges kv into err's context map. Foreign errors are wrapped as
// internal errors first.
func WithContext(err error, kv map[string]interface{}) error {
	if err == nil {
		return nil
	}
	e, ok := AsError(err)
	if !ok {
		e = NewErrorWithCause(ErrorTypeInternal, err.Error(), err)
	}
	merged := make(map[string]interface{}, len(e.Context)+len(kv))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range kv {
		merged[k] = v
	}
	e.Context = merged
	return e
}

// WithDisplay sets the user-facing message on err.
func WithDisplay(err error, display string) error {
	if err == nil || display == "" {
		return err
	}
	e, ok := AsError(err)
	if !ok {
		e = NewErrorWithCause(ErrorTypeInternal, err.Error(), err)
	}
	e.Display = display
	return e
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsInvalidInput checks if an error is an "invalid input" error
func IsInvalidInput(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidInput
}

// IsMultipleResults checks if an error is a "multiple results" error
func IsMultipleResults(err error) bool {
	return TypeOf(err) == ErrorTypeMultipleResults
}

// IsInvalidArgument checks if an error is an "invalid argument" error
func IsInvalidArgument(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidArgument
}

// IsPersistence checks if an error is a "persistence" error
func IsPersistence(err error) bool {
	return TypeOf(err) == ErrorTypePersistence
}

// IsMigration checks if an error is a "migration" error
func IsMigration(err error) bool {
	return TypeOf(err) == ErrorTypeMigration
}

// IsDuplicate checks if an error is a "duplicate" error
func IsDuplicate(err error) bool {
	return TypeOf(err) == ErrorTypeDuplicate
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

// IsTransient reports whether err is a storage failure worth retrying:
// timeouts, lock contention, lost connections and unclassified persistence
// failures.
func IsTransient(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeTimeout, ErrorTypeLocked, ErrorTypeConnection, ErrorTypePersistence:
		return true
	}
	return false
}
