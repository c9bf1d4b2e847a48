// Package errors provides the unified error type for resolvekit.
// Every failure surfaced by registration, compilation or resolution is an
// *AppError carrying a machine-readable code, so callers can tell a missing
// registration from a cyclic graph or a missing scope without string matching.
package errors
