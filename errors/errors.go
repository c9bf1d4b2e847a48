package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// AppError is the unified resolvekit error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// --- Constructors ---

// Registration creates an error for a target that cannot be registered.
func Registration(target, typ, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeRegistration,
		Message: fmt.Sprintf("target %s cannot be registered as %s: %s", target, typ, reason),
		Details: map[string]any{"target": target, "type": typ},
	}
}

// InvalidArgument creates an error for a nil or empty required argument.
func InvalidArgument(name string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidArgument,
		Message: fmt.Sprintf("argument %s is required", name),
		Details: map[string]any{"argument": name},
	}
}

// NotFound creates an error for a type with no matching target.
func NotFound(typ, name string) *AppError {
	details := map[string]any{"type": typ}
	msg := fmt.Sprintf("no target registered for %s", typ)
	if name != "" {
		details["name"] = name
		msg = fmt.Sprintf("no target registered for %s named %q", typ, name)
	}
	return &AppError{Code: ErrCodeNotFound, Message: msg, Details: details}
}

// CyclicDependency creates an error naming the target that closed the cycle.
// chain lists the declared types currently being built, outermost first.
func CyclicDependency(target, typ string, chain []string) *AppError {
	path := make([]string, 0, len(chain)+1)
	path = append(append(path, chain...), typ)
	return &AppError{
		Code: ErrCodeCyclicDependency,
		Message: fmt.Sprintf("cyclic dependency on target %s (%s): %s",
			target, typ, strings.Join(path, " -> ")),
		Details: map[string]any{"target": target, "type": typ, "chain": chain},
	}
}

// Ambiguous creates an error listing the equally good candidates for typ.
func Ambiguous(typ string, candidates []string) *AppError {
	return &AppError{
		Code: ErrCodeAmbiguousMatch,
		Message: fmt.Sprintf("ambiguous match for %s between [%s]",
			typ, strings.Join(candidates, ", ")),
		Details: map[string]any{"type": typ, "candidates": candidates},
	}
}

// MissingScope creates an error for an explicitly scoped target resolved
// without an active scope.
func MissingScope(typ string) *AppError {
	return &AppError{
		Code:    ErrCodeMissingScope,
		Message: fmt.Sprintf("%s must be resolved within a scope", typ),
		Details: map[string]any{"type": typ},
	}
}

// ScopeDisposed creates an error for a resolve against a disposed scope.
func ScopeDisposed() *AppError {
	return &AppError{Code: ErrCodeScopeDisposed, Message: "scope has been disposed"}
}

// NoBuilder creates an error for a target kind with no builder.
func NoBuilder(target, kind string) *AppError {
	return &AppError{
		Code:    ErrCodeNoBuilder,
		Message: fmt.Sprintf("no builder accepts target %s of kind %s", target, kind),
		Details: map[string]any{"target": target, "kind": kind},
	}
}

// TypeMismatch creates an error for a produced type that cannot become the
// required type without a downcast.
func TypeMismatch(produced, required string) *AppError {
	return &AppError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("%s cannot be converted to %s", produced, required),
		Details: map[string]any{"produced": produced, "required": required},
	}
}

// Construction wraps an error returned by a constructor or factory.
func Construction(typ string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeConstruction,
		Message: fmt.Sprintf("constructing %s failed", typ),
		Details: map[string]any{"type": typ},
		Cause:   cause,
	}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsNotFound reports whether err is a resolution miss.
func IsNotFound(err error) bool { return HasCode(err, ErrCodeNotFound) }

// IsCyclic reports whether err is a cyclic dependency.
func IsCyclic(err error) bool { return HasCode(err, ErrCodeCyclicDependency) }

// IsMissingScope reports whether err is a missing-scope failure.
func IsMissingScope(err error) bool { return HasCode(err, ErrCodeMissingScope) }
