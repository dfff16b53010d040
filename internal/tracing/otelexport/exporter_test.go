package otelexport

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNew_EmptyEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestExporter_Shutdown_Nil(t *testing.T) {
	var e *Exporter
	if err := e.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown = %v", err)
	}
}

func TestInstall_ExportsGlobalSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx := context.Background()
	mem := tracetest.NewInMemoryExporter()
	exp, err := newWithExporter(ctx, Config{ServiceName: "skhoolar-test", Version: "1.2.3"}, mem)
	if err != nil {
		t.Fatalf("newWithExporter: %v", err)
	}
	exp.Install()

	_, span := otel.Tracer("test").Start(ctx, "provider.chat")
	span.SetAttributes(attribute.String("gen_ai.system", "openai"))
	span.End()

	// Shutdown would also reset the in-memory exporter.
	if err := exp.provider.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}
	defer exp.Shutdown(ctx)

	spans := mem.GetSpans()
	if len(spans) != 1 || spans[0].Name != "provider.chat" {
		t.Fatalf("exported spans = %v", spans)
	}
	var gotService string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == semconv.ServiceNameKey {
			gotService = kv.Value.AsString()
		}
	}
	if gotService != "skhoolar-test" {
		t.Errorf("service.name = %q", gotService)
	}
}
