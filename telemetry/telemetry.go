// Package telemetry defines the logging, metrics, and tracing interfaces used
// throughout the runtime. Components accept these as injected dependencies
// rather than reaching for package-level globals (§9 design notes).
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger emits structured, leveled log lines tied to the request context.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, timers, and gauges for runtime operations.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, d time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer starts spans for cross-component operations (tool calls, node
	// execution, secret/auth round trips).
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	}

	// Span is a thin wrapper so callers need not import the OTEL trace package
	// directly.
	Span interface {
		End()
		RecordError(err error)
		SetAttributes(kv ...any)
		AddEvent(name string, kv ...any)
	}
)
