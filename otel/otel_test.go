package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartcampus/order-saga/rabbitmq"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNewMetricsCollector(t *testing.T) {
	meter := metricnoop.NewMeterProvider().Meter("test")

	metrics, err := NewMetricsCollector(meter)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// Smoke test every interface method against the noop backend
	metrics.RecordConnectionAttempt(true, time.Second)
	metrics.RecordReconnection(1)
	metrics.RecordPublish("order.created", 128, time.Millisecond)
	metrics.RecordMessageReceived("order.created")
	metrics.RecordMessageProcessed("order.created", false, time.Millisecond)
	metrics.RecordMessageRequeued("order.created")
	metrics.RecordError("publish", errors.New("channel closed"))
}

func TestTracerSpanLifecycle(t *testing.T) {
	tracer := NewTracer(tracenoop.NewTracerProvider().Tracer("test"))

	ctx, span := tracer.StartSpan(context.Background(), "rabbitmq.publish")
	if ctx == nil {
		t.Fatal("expected a context")
	}

	span.SetAttribute("routing_key", "order.created")
	span.SetAttribute("attempt", 1)
	span.SetAttribute("amount", 999.99)
	span.SetAttribute("redelivered", false)
	span.SetAttribute("custom", struct{}{})
	span.SetStatus(rabbitmq.SpanStatusOK, "")
	span.SetStatus(rabbitmq.SpanStatusError, "boom")
	span.SetStatus(rabbitmq.SpanStatusUnset, "")
	span.End()
}
