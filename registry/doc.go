// Package registry stores Targets by type and finds them through the type
// search.
//
// Registrations are grouped in nested containers: one per plain type, one per
// open generic family holding the definition and every closed or partially
// open form registered for it, and one per array family. A registry can have
// a parent; the parent is consulted only for types the child has nothing for.
//
// Arrays and Enumerable<T> that have no explicit registration are synthesised
// as List targets over every Target registered for T.
package registry
