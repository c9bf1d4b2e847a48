// Package scope is the lifetime runtime: a tree of scopes that own the
// instances created under singleton or scoped policy and dispose them, and
// everything produced in child scopes, when they end.
//
// Explicitly scoped instances live in once-only cells keyed by the producing
// target and the requested type. A cell exposes at most one construction
// result; a failed construction is not cached and the next resolve retries.
package scope
