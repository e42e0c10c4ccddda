package rabbitmq

import (
	"context"
	"time"
)

// ReconnectPolicy defines the interface for reconnection strategies
type ReconnectPolicy interface {
	ShouldRetry(attempt int, err error) bool
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff reconnection policy
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

func (e *ExponentialBackoff) ShouldRetry(attempt int, err error) bool {
	if e.MaxAttempts > 0 && attempt >= e.MaxAttempts {
		return false
	}
	return true
}

func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := e.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * e.Multiplier)
		if delay > e.MaxDelay {
			return e.MaxDelay
		}
	}
	return delay
}

// FixedDelay implements fixed delay reconnection policy
type FixedDelay struct {
	Delay       time.Duration
	MaxAttempts int
}

func (f *FixedDelay) ShouldRetry(attempt int, err error) bool {
	if f.MaxAttempts > 0 && attempt >= f.MaxAttempts {
		return false
	}
	return true
}

func (f *FixedDelay) NextDelay(attempt int) time.Duration {
	return f.Delay
}

// Logger interface for structured logging
// Users can implement this interface to integrate their preferred logging solution.
type Logger interface {
	// Debug logs a debug message with optional structured fields
	Debug(msg string, fields ...any)

	// Info logs an informational message with optional structured fields
	Info(msg string, fields ...any)

	// Warn logs a warning message with optional structured fields
	Warn(msg string, fields ...any)

	// Error logs an error message with optional structured fields
	Error(msg string, fields ...any)
}

// NopLogger is a no-operation logger that produces no output.
// This is used as the default logger when no logger is provided.
type NopLogger struct{}

// Debug implements Logger.Debug with no operation
func (n *NopLogger) Debug(msg string, fields ...any) {}

// Info implements Logger.Info with no operation
func (n *NopLogger) Info(msg string, fields ...any) {}

// Warn implements Logger.Warn with no operation
func (n *NopLogger) Warn(msg string, fields ...any) {}

// Error implements Logger.Error with no operation
func (n *NopLogger) Error(msg string, fields ...any) {}

// NewNopLogger creates a new no-operation logger
func NewNopLogger() Logger {
	return &NopLogger{}
}

// MetricsCollector interface for collecting bus metrics
type MetricsCollector interface {
	// Connection metrics
	RecordConnectionAttempt(success bool, duration time.Duration)
	RecordReconnection(attempt int)

	// Publishing metrics
	RecordPublish(routingKey string, size int, duration time.Duration)

	// Consumption metrics
	RecordMessageReceived(routingKey string)
	RecordMessageProcessed(routingKey string, success bool, duration time.Duration)
	RecordMessageRequeued(routingKey string)

	// Error tracking
	RecordError(operation string, err error)
}

// NopMetrics is a no-operation metrics collector
type NopMetrics struct{}

func (n *NopMetrics) RecordConnectionAttempt(success bool, duration time.Duration)            {}
func (n *NopMetrics) RecordReconnection(attempt int)                                          {}
func (n *NopMetrics) RecordPublish(routingKey string, size int, duration time.Duration)       {}
func (n *NopMetrics) RecordMessageReceived(routingKey string)                                 {}
func (n *NopMetrics) RecordMessageProcessed(routingKey string, success bool, d time.Duration) {}
func (n *NopMetrics) RecordMessageRequeued(routingKey string)                                 {}
func (n *NopMetrics) RecordError(operation string, err error)                                 {}

// NewNopMetrics creates a new no-operation metrics collector
func NewNopMetrics() MetricsCollector {
	return &NopMetrics{}
}

// Tracer interface for distributed tracing
type Tracer interface {
	StartSpan(ctx context.Context, operationName string) (context.Context, Span)
}

// Span represents a tracing span
type Span interface {
	End()
	SetStatus(code SpanStatusCode, description string)
	SetAttribute(key string, value any)
}

// SpanStatusCode represents the status of a span
type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)

// NopTracer is a no-operation tracer
type NopTracer struct{}

func (n *NopTracer) StartSpan(ctx context.Context, operationName string) (context.Context, Span) {
	return ctx, &NopSpan{}
}

// NopSpan is a no-operation span
type NopSpan struct{}

func (n *NopSpan) End()                                              {}
func (n *NopSpan) SetStatus(code SpanStatusCode, description string) {}
func (n *NopSpan) SetAttribute(key string, value any)                {}

// NewNopTracer creates a new no-operation tracer
func NewNopTracer() Tracer {
	return &NopTracer{}
}

// Closable interface for components that can be gracefully closed
type Closable interface {
	Close() error
}
