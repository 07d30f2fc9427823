package repository

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kvetinski/bank/internal/domain"
	"github.com/kvetinski/bank/internal/telemetry"
)

// call records one store method invocation as a span and a DB metric sample.
type call struct {
	metrics *telemetry.Metrics
	method  string
	start   time.Time
	span    trace.Span
}

func startCall(ctx context.Context, metrics *telemetry.Metrics, driver, method string) (context.Context, *call) {
	ctx, span := telemetry.Tracer().Start(ctx, "store."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", driver)),
	)

	return ctx, &call{
		metrics: metrics,
		method:  method,
		start:   time.Now(),
		span:    span,
	}
}

func (c *call) end(err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAccountNotFound):
		status = "not_found"
	default:
		status = "error"
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}

	c.metrics.ObserveDB(c.method, status, time.Since(c.start))
	c.span.End()
}
