package temporal

import (
	sdkotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"

	"go.opentelemetry.io/otel/trace"
)

// TracingInterceptor builds the client/worker interceptor that exports
// Temporal workflow and activity spans through the runtime's own OTEL
// tracer provider, so a run's graph.Execute activity shows up in the same
// traces as its tool/secret/authz calls (telemetry.ClueTracer).
func TracingInterceptor(provider trace.TracerProvider) (interceptor.Interceptor, error) {
	return sdkotel.NewTracingInterceptor(sdkotel.TracerOptions{
		Tracer: provider.Tracer("agentfoundry.graph.engine.temporal"),
	})
}
