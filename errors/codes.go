package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Registration errors
const (
	// ErrCodeRegistration indicates a target cannot be registered against the requested type.
	ErrCodeRegistration ErrorCode = "REGISTRATION_ERROR"
	// ErrCodeInvalidArgument indicates a required argument was nil or empty.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Resolution errors
const (
	// ErrCodeNotFound indicates no target could be found for the requested type.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeCyclicDependency indicates a target depends on itself.
	ErrCodeCyclicDependency ErrorCode = "CYCLIC_DEPENDENCY"
	// ErrCodeAmbiguousMatch indicates several equally good candidates were found.
	ErrCodeAmbiguousMatch ErrorCode = "AMBIGUOUS_MATCH"
	// ErrCodeMissingScope indicates an explicitly scoped target was resolved without a scope.
	ErrCodeMissingScope ErrorCode = "MISSING_SCOPE"
	// ErrCodeScopeDisposed indicates a resolve against a disposed scope.
	ErrCodeScopeDisposed ErrorCode = "SCOPE_DISPOSED"
)

// Compilation errors
const (
	// ErrCodeNoBuilder indicates no builder accepts the target.
	ErrCodeNoBuilder ErrorCode = "NO_BUILDER"
	// ErrCodeTypeMismatch indicates a produced type cannot be converted to the required type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
	// ErrCodeConstruction indicates a constructor or factory returned an error.
	ErrCodeConstruction ErrorCode = "CONSTRUCTION_FAILED"
)

// IsResolutionCode reports whether code is raised while looking up or
// instantiating a target rather than while registering one.
func IsResolutionCode(code ErrorCode) bool {
	switch code {
	case ErrCodeNotFound, ErrCodeCyclicDependency, ErrCodeAmbiguousMatch,
		ErrCodeMissingScope, ErrCodeScopeDisposed:
		return true
	}
	return false
}
