// Package types is resolvekit's type-descriptor model.
//
// Go erases generic type arguments at run time and has no notion of base
// classes or declared variance, so the registry cannot search over live
// reflection the way a nominal runtime would. Instead every type a container
// knows about is described by a *Type owned by a Universe: named classes,
// structs and interfaces, open generic definitions with per-parameter
// variance, constructed (possibly partially open) generics, and arrays.
// Real Go types join the model through Universe.Go / Of.
//
// Constructed types and arrays are interned, so two descriptors are the same
// type exactly when the pointers are equal and *Type can be used as a map key.
//
//	u := types.NewUniverse()
//	ilog := u.Interface("ILogger")
//	repo := u.GenericInterface("IRepository", types.P("T"))
//	impl := u.GenericClass("SQLRepository", types.P("T"))
//	impl.Implements(u.MustMakeGeneric(repo, impl.Param(0)))
//
// Search produces the ordered lookup keys the registry tries for a request,
// and Bind maps an open generic definition onto a requested type.
package types
