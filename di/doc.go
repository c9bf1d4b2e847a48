// Package di is the container façade over the registry, compiler and scope
// runtime.
//
// A Container owns a registry of targets, compiles a target the first time
// its type is resolved, and keeps a root scope for singletons. Scopes created
// from it bound the lifetime of scoped instances and of the disposable
// instances resolved through them.
//
// # Registration
//
//	c := di.New(nil)
//	_ = di.Provide(c, NewSQLStore, di.As[Store](), di.Singleton())
//	_ = di.Provide(c, NewOrderService)
//
// # Resolution
//
//	svc := di.MustResolve[*OrderService](c)
//
//	s, _ := c.CreateScope()
//	defer s.Dispose()
//	h, err := di.Resolve[*RequestHandler](s)
package di
