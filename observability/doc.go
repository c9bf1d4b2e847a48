// Package observability provides OpenTelemetry tracing and metrics for the
// container: spans around target compilation and resolution, and counters
// for resolves, compiles, compiled-cache hits and live scopes.
//
// Setup:
//
//	p, err := observability.Setup(ctx, cfg)
//	defer p.Shutdown(ctx)
//
// Instruments:
//
//	metrics, err := observability.NewMetrics(observability.Meter("resolvekit"))
//	metrics.RecordResolve(ctx, "IRepository<User>", observability.StatusOK, d)
package observability
