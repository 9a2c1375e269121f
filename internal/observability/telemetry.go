package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "zohobooks-mcp/server"

// Tracer returns the tracer used for upstream and token spans.
// Spans are dropped unless the binary installs an SDK TracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Meter returns the meter used for tool call instruments.
func Meter() metric.Meter {
	return otel.GetMeterProvider().Meter(instrumentationName)
}
