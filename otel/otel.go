// Package otel provides OpenTelemetry integration for the saga orchestrator.
// It implements the rabbitmq.MetricsCollector and rabbitmq.Tracer interfaces
// using OpenTelemetry semantic conventions for messaging systems.
//
// Usage:
//
//	meter := otel.Meter("order-saga")
//	metrics, err := sagaotel.NewMetricsCollector(meter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tracer := sagaotel.NewTracer(otel.Tracer("order-saga"))
//
//	client, err := rabbitmq.NewClient(
//	    rabbitmq.WithMetrics(metrics),
//	    rabbitmq.WithTracer(tracer),
//	)
package otel

import (
	"context"
	"fmt"
	"time"

	"github.com/smartcampus/order-saga/rabbitmq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Semantic convention attribute keys for messaging
// Based on OpenTelemetry Semantic Conventions for Messaging
// https://opentelemetry.io/docs/specs/semconv/messaging/
const (
	MessagingSystem    = "messaging.system"
	MessagingOperation = "messaging.operation"

	MessagingRabbitMQRoutingKey = "messaging.rabbitmq.routing_key"

	MessagingMessageBodySize = "messaging.message.body.size"

	OperationPublish = "publish"
	OperationProcess = "process"
)

// MetricsCollector implements rabbitmq.MetricsCollector using OpenTelemetry metrics.
type MetricsCollector struct {
	meter metric.Meter

	// Connection metrics
	connectionAttempts  metric.Int64Counter
	connectionDuration  metric.Float64Histogram
	reconnectionCounter metric.Int64Counter

	// Publishing metrics
	publishCounter     metric.Int64Counter
	publishDuration    metric.Float64Histogram
	publishMessageSize metric.Int64Histogram

	// Consumption metrics
	messageReceivedCounter  metric.Int64Counter
	messageProcessedCounter metric.Int64Counter
	processDuration         metric.Float64Histogram
	messageRequeuedCounter  metric.Int64Counter

	errorCounter metric.Int64Counter
}

// NewMetricsCollector creates a new OpenTelemetry metrics collector.
// The meter should be obtained from an OpenTelemetry MeterProvider.
func NewMetricsCollector(meter metric.Meter) (*MetricsCollector, error) {
	m := &MetricsCollector{meter: meter}

	var err error

	m.connectionAttempts, err = meter.Int64Counter("rabbitmq.connection.attempts",
		metric.WithDescription("Number of connection attempts"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, err
	}

	m.connectionDuration, err = meter.Float64Histogram("rabbitmq.connection.duration",
		metric.WithDescription("Duration of connection attempts"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.reconnectionCounter, err = meter.Int64Counter("rabbitmq.reconnections",
		metric.WithDescription("Number of reconnection attempts"),
		metric.WithUnit("{reconnection}"))
	if err != nil {
		return nil, err
	}

	m.publishCounter, err = meter.Int64Counter("rabbitmq.publish.count",
		metric.WithDescription("Number of events published"),
		metric.WithUnit("{message}"))
	if err != nil {
		return nil, err
	}

	m.publishDuration, err = meter.Float64Histogram("rabbitmq.publish.duration",
		metric.WithDescription("Duration of publish operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.publishMessageSize, err = meter.Int64Histogram("rabbitmq.publish.message.size",
		metric.WithDescription("Size of published events"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	m.messageReceivedCounter, err = meter.Int64Counter("rabbitmq.messages.received",
		metric.WithDescription("Number of events received"),
		metric.WithUnit("{message}"))
	if err != nil {
		return nil, err
	}

	m.messageProcessedCounter, err = meter.Int64Counter("rabbitmq.messages.processed",
		metric.WithDescription("Number of events processed"),
		metric.WithUnit("{message}"))
	if err != nil {
		return nil, err
	}

	m.processDuration, err = meter.Float64Histogram("rabbitmq.messages.process.duration",
		metric.WithDescription("Duration of event handler execution"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.messageRequeuedCounter, err = meter.Int64Counter("rabbitmq.messages.requeued",
		metric.WithDescription("Number of events re-enqueued for retry"),
		metric.WithUnit("{message}"))
	if err != nil {
		return nil, err
	}

	m.errorCounter, err = meter.Int64Counter("rabbitmq.errors",
		metric.WithDescription("Number of errors"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Ensure MetricsCollector implements rabbitmq.MetricsCollector
var _ rabbitmq.MetricsCollector = (*MetricsCollector)(nil)

// RecordConnectionAttempt records a connection attempt
func (m *MetricsCollector) RecordConnectionAttempt(success bool, duration time.Duration) {
	ctx := context.Background()
	m.connectionAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("success", success)))
	m.connectionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordReconnection records a reconnection attempt
func (m *MetricsCollector) RecordReconnection(attempt int) {
	m.reconnectionCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Int("attempt", attempt)))
}

// RecordPublish records a publish operation
func (m *MetricsCollector) RecordPublish(routingKey string, size int, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String(MessagingSystem, "rabbitmq"),
		attribute.String(MessagingOperation, OperationPublish),
		attribute.String(MessagingRabbitMQRoutingKey, routingKey),
	)
	m.publishCounter.Add(ctx, 1, attrs)
	m.publishDuration.Record(ctx, duration.Seconds(), attrs)
	m.publishMessageSize.Record(ctx, int64(size), attrs)
}

// RecordMessageReceived records an event received from the bus
func (m *MetricsCollector) RecordMessageReceived(routingKey string) {
	m.messageReceivedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(MessagingRabbitMQRoutingKey, routingKey)))
}

// RecordMessageProcessed records the outcome of one handler execution
func (m *MetricsCollector) RecordMessageProcessed(routingKey string, success bool, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String(MessagingSystem, "rabbitmq"),
		attribute.String(MessagingOperation, OperationProcess),
		attribute.String(MessagingRabbitMQRoutingKey, routingKey),
		attribute.Bool("success", success),
	)
	m.messageProcessedCounter.Add(ctx, 1, attrs)
	m.processDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordMessageRequeued records an event re-enqueued for retry
func (m *MetricsCollector) RecordMessageRequeued(routingKey string) {
	m.messageRequeuedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(MessagingRabbitMQRoutingKey, routingKey)))
}

// RecordError records an error
func (m *MetricsCollector) RecordError(operation string, err error) {
	m.errorCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("error.type", err.Error()),
		))
}

// Tracer implements rabbitmq.Tracer using OpenTelemetry tracing.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new OpenTelemetry tracer wrapper.
// The tracer should be obtained from an OpenTelemetry TracerProvider.
func NewTracer(tracer trace.Tracer) *Tracer {
	return &Tracer{tracer: tracer}
}

// Ensure Tracer implements rabbitmq.Tracer
var _ rabbitmq.Tracer = (*Tracer)(nil)

// StartSpan starts a new span for the given operation
func (t *Tracer) StartSpan(ctx context.Context, operation string) (context.Context, rabbitmq.Span) {
	ctx, span := t.tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(MessagingSystem, "rabbitmq")),
	)
	return ctx, &Span{span: span}
}

// Span wraps an OpenTelemetry span to implement rabbitmq.Span
type Span struct {
	span trace.Span
}

// Ensure Span implements rabbitmq.Span
var _ rabbitmq.Span = (*Span)(nil)

// SetAttribute sets an attribute on the span
func (s *Span) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// SetStatus sets the status of the span
func (s *Span) SetStatus(code rabbitmq.SpanStatusCode, description string) {
	switch code {
	case rabbitmq.SpanStatusOK:
		s.span.SetStatus(codes.Ok, description)
	case rabbitmq.SpanStatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

// End ends the span
func (s *Span) End() {
	s.span.End()
}
