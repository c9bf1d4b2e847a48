package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation is one traced and timed container operation, such as compiling
// a target or serving a resolve call.
type Operation struct {
	Name      string
	StartTime time.Time

	ctx  context.Context
	span trace.Span
}

// operationKey is the context key for Operation.
type operationKey struct{}

// StartOperation starts a span named name on tracer (the default tracer when
// nil) and stores the operation in the returned context.
func StartOperation(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracer == nil {
		tracer = Tracer(defaultTracerName)
	}
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	op := &Operation{Name: name, StartTime: time.Now(), span: span}
	op.ctx = context.WithValue(ctx, operationKey{}, op)
	return op.ctx, op
}

// OperationFromContext returns the innermost operation in ctx, or nil.
func OperationFromContext(ctx context.Context) *Operation {
	if op, ok := ctx.Value(operationKey{}).(*Operation); ok {
		return op
	}
	return nil
}

// Context returns the context carrying the operation's span.
func (op *Operation) Context() context.Context { return op.ctx }

// Span returns the operation's span.
func (op *Operation) Span() trace.Span { return op.span }

// SetAttributes adds attributes to the operation's span.
func (op *Operation) SetAttributes(attrs ...attribute.KeyValue) {
	op.span.SetAttributes(attrs...)
}

// End records err, if any, ends the span and returns the elapsed time.
func (op *Operation) End(err error) time.Duration {
	d := op.Duration()
	if err != nil {
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
		op.span.SetAttributes(attribute.String(AttrError, err.Error()))
	}
	op.span.End()
	return d
}

// Duration returns the elapsed time since the operation started.
func (op *Operation) Duration() time.Duration {
	return time.Since(op.StartTime)
}
