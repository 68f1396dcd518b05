package telemetry

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetup_None(t *testing.T) {
	shutdown, err := Setup(context.Background(), "none")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetup_Unknown(t *testing.T) {
	if _, err := Setup(context.Background(), "zipkin"); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestSetup_StdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := setup(context.Background(), "stdout", &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "tasks.create")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "tasks.create") || !strings.Contains(out, serviceName) {
		t.Fatalf("expected exported span with service name, got %s", out)
	}
}

func TestSetup_SpansStayOffLogStream(t *testing.T) {
	if spanOut != os.Stderr {
		t.Fatalf("stdout exporter must not share stdout with the JSON logs")
	}
}
