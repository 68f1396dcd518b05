// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "todo-master"

// spanOut receives the "stdout" exporter's output. Logs own stdout.
var spanOut io.Writer = os.Stderr

// Shutdown flushes and stops the provider.
type Shutdown func(context.Context) error

// Setup installs a tracer provider for exporter "stdout" or "otlp".
// The "stdout" exporter writes to stderr so spans stay out of the log stream.
// "none" or "" leaves the no-op global provider in place. The OTLP exporter
// reads OTEL_EXPORTER_OTLP_ENDPOINT and friends from the environment.
func Setup(ctx context.Context, exporter string) (Shutdown, error) {
	return setup(ctx, exporter, spanOut)
}

func setup(ctx context.Context, exporter string, out io.Writer) (Shutdown, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch exporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		exp, err = stdouttrace.New(stdouttrace.WithWriter(out))
	case "otlp":
		exp, err = otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unknown traces exporter %q", exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
