package rabbitmq

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cloudresty/ulid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// minResubscribeDelay is the minimum delay before re-subscribing after a
// channel failure, to prevent busy loops.
const minResubscribeDelay = 100 * time.Millisecond

// Handler is the function signature for handling consumed messages.
// A nil return acknowledges the delivery; an error negatively acknowledges
// it according to the consumer's failure policy.
type Handler func(ctx context.Context, delivery *Delivery) error

// GenerateConsumerTag creates a unique consumer tag using Hostname + ULID.
// The hostname identifies which pod/VM the consumer runs on; the ULID makes
// the tag globally unique and time-sortable.
func GenerateConsumerTag() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	hostname = sanitizeHostname(hostname)

	ulidStr, err := ulid.New()
	if err != nil {
		return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
	}

	return fmt.Sprintf("%s-%s", hostname, ulidStr)
}

// sanitizeHostname keeps only characters that are safe in AMQP consumer tags
func sanitizeHostname(hostname string) string {
	result := make([]byte, 0, len(hostname))
	for _, r := range hostname {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			result = append(result, byte(r))
		} else {
			result = append(result, '-')
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	return string(result)
}

// Consumer binds an anonymous, exclusive queue to one routing key on the
// shared exchange and delivers decoded messages to a registered handler.
//
// Failure policy: by default a handler error results in a single negative
// acknowledgment with requeue disabled, so the message is dropped rather
// than redelivered. This deliberately trades retries for protection against
// infinite redelivery loops; a failed saga trigger is therefore never
// retried automatically. WithRequeueOnError and WithDeadLetterExchange make
// the policy explicit and configurable.
type Consumer struct {
	client *Client
	config *consumerConfig
}

// consumerConfig holds consumer-specific configuration
type consumerConfig struct {
	ConsumerTag   string
	PrefetchCount int

	// Failure policy
	MaxRetries         int    // >0 enables bounded redelivery via republish
	DeadLetterExchange string // non-empty routes rejected messages to a DLX
}

// ConsumerOption represents a functional option for consumer configuration
type ConsumerOption func(*consumerConfig)

// WithConsumerTag sets the consumer tag
func WithConsumerTag(tag string) ConsumerOption {
	return func(config *consumerConfig) {
		config.ConsumerTag = tag
	}
}

// WithPrefetchCount sets the prefetch count
func WithPrefetchCount(count int) ConsumerOption {
	return func(config *consumerConfig) {
		config.PrefetchCount = count
	}
}

// WithRequeueOnError enables bounded redelivery of failed messages. After
// maxRetries failed attempts the message is rejected without requeue.
func WithRequeueOnError(maxRetries int) ConsumerOption {
	return func(config *consumerConfig) {
		config.MaxRetries = maxRetries
	}
}

// WithDeadLetterExchange routes rejected messages to the named exchange
// instead of discarding them.
func WithDeadLetterExchange(name string) ConsumerOption {
	return func(config *consumerConfig) {
		config.DeadLetterExchange = name
	}
}

// NewConsumer creates a new consumer from the client
func (c *Client) NewConsumer(opts ...ConsumerOption) *Consumer {
	// Default configuration: one in-flight message, drop on failure
	config := &consumerConfig{
		ConsumerTag:   GenerateConsumerTag(),
		PrefetchCount: 1,
	}

	for _, opt := range opts {
		opt(config)
	}

	c.config.Logger.Debug("Consumer created",
		"connection_name", c.config.ConnectionName,
		"consumer_tag", config.ConsumerTag,
		"prefetch_count", config.PrefetchCount,
		"max_retries", config.MaxRetries)

	return &Consumer{
		client: c,
		config: config,
	}
}

// queueArguments builds the declaration arguments for the private queue
func (c *Consumer) queueArguments() amqp.Table {
	if c.config.DeadLetterExchange == "" {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange": c.config.DeadLetterExchange,
	}
}

// Subscribe binds a private queue to routingKey on the shared exchange and
// blocks delivering messages to handler, one at a time, until ctx is
// cancelled. Each subscriber gets its own full copy of every matching event
// (fan-out, not competing consumers). The queue is exclusive and auto-
// deleted when the connection closes; it lazily connects the client on
// first use and re-subscribes if the channel drops.
func (c *Consumer) Subscribe(ctx context.Context, routingKey string, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ch, err := c.client.channel(ctx)
		if err != nil {
			c.client.config.Logger.Error("Failed to obtain channel, retrying",
				"routing_key", routingKey,
				"error", err.Error())

			if err := c.waitBeforeRetry(ctx); err != nil {
				return err
			}
			continue
		}

		if err := c.consumeOnce(ctx, ch, routingKey, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.client.config.Logger.Warn("Subscription interrupted, re-subscribing",
				"routing_key", routingKey,
				"error", err.Error())

			if err := c.waitBeforeRetry(ctx); err != nil {
				return err
			}
		}
	}
}

// waitBeforeRetry sleeps for the reconnect delay, honoring ctx cancellation
func (c *Consumer) waitBeforeRetry(ctx context.Context) error {
	delay := max(c.client.config.ReconnectDelay, minResubscribeDelay)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// consumeOnce declares, binds and drains the private queue on one channel.
// It returns when the delivery channel closes or ctx is cancelled.
func (c *Consumer) consumeOnce(ctx context.Context, ch *amqp.Channel, routingKey string, handler Handler) error {
	queue, err := ch.QueueDeclare(
		"",    // anonymous, broker-generated name
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		c.queueArguments(),
	)
	if err != nil {
		return NewConsumeError("failed to declare queue", err)
	}

	if err := ch.QueueBind(queue.Name, routingKey, c.client.config.Exchange, false, nil); err != nil {
		return NewConsumeError(
			fmt.Sprintf("failed to bind queue to %q", routingKey), err)
	}

	if err := ch.Qos(c.config.PrefetchCount, 0, false); err != nil {
		return NewConsumeError("failed to set QoS", err)
	}

	deliveries, err := ch.Consume(
		queue.Name,
		c.config.ConsumerTag,
		false, // manual ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return NewConsumeError("failed to start consuming", err)
	}

	c.client.config.Logger.Info("Listening for events",
		"routing_key", routingKey,
		"queue", queue.Name,
		"consumer_tag", c.config.ConsumerTag)

	// The broker delivers the next message only after the previous one is
	// acked or nacked, so each handler invocation runs to completion before
	// the next delivery arrives.
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return NewConsumeError("delivery channel closed", nil)
			}
			c.handleDelivery(ctx, ch, queue.Name, routingKey, &delivery, handler)
		}
	}
}

// handleDelivery invokes the handler for one delivery and settles it:
// exactly one ack on success, exactly one nack (or bounded republish)
// on failure.
func (c *Consumer) handleDelivery(ctx context.Context, ch *amqp.Channel, queueName, routingKey string, delivery *amqp.Delivery, handler Handler) {
	c.client.config.Metrics.RecordMessageReceived(routingKey)

	wrapped := &Delivery{
		Delivery:   *delivery,
		ReceivedAt: time.Now(),
	}

	msgCtx, span := c.client.config.Tracer.StartSpan(ctx, "rabbitmq.process_message")
	defer span.End()

	span.SetAttribute("routing_key", routingKey)
	span.SetAttribute("message_id", delivery.MessageId)

	start := time.Now()
	var handlerErr error

	// Panic in a handler is a handler failure, not a process crash
	func() {
		defer func() {
			if r := recover(); r != nil {
				handlerErr = fmt.Errorf("handler panicked: %v", r)
				c.client.config.Logger.Error("Message handler panicked",
					"routing_key", routingKey,
					"message_id", delivery.MessageId,
					"panic", fmt.Sprintf("%v", r))
			}
		}()

		handlerErr = handler(msgCtx, wrapped)
	}()

	duration := time.Since(start)
	success := handlerErr == nil
	c.client.config.Metrics.RecordMessageProcessed(routingKey, success, duration)

	if success {
		span.SetStatus(SpanStatusOK, "")

		if err := delivery.Ack(false); err != nil {
			c.client.config.Logger.Error("Failed to acknowledge message",
				"routing_key", routingKey,
				"message_id", delivery.MessageId,
				"error", err.Error())
		}

		c.client.config.Logger.Debug("Message processed",
			"routing_key", routingKey,
			"message_id", delivery.MessageId,
			"duration", duration)
		return
	}

	span.SetStatus(SpanStatusError, handlerErr.Error())
	c.settleFailure(ch, queueName, routingKey, delivery, handlerErr)
}

// settleFailure applies the consumer's failure policy to one delivery
func (c *Consumer) settleFailure(ch *amqp.Channel, queueName, routingKey string, delivery *amqp.Delivery, handlerErr error) {
	c.client.config.Logger.Warn("Message processing failed",
		"routing_key", routingKey,
		"message_id", delivery.MessageId,
		"error", handlerErr.Error())

	if c.config.MaxRetries > 0 {
		attempts := retryCount(delivery)

		if attempts < c.config.MaxRetries {
			c.client.config.Logger.Info("Redelivering message",
				"routing_key", routingKey,
				"message_id", delivery.MessageId,
				"attempt", attempts+1,
				"max_retries", c.config.MaxRetries)

			if err := c.republish(ch, queueName, delivery, attempts+1); err != nil {
				c.client.config.Logger.Error("Failed to republish message for retry",
					"routing_key", routingKey,
					"message_id", delivery.MessageId,
					"error", err.Error())
				_ = delivery.Nack(false, false)
				return
			}
			_ = delivery.Ack(false)
			c.client.config.Metrics.RecordMessageRequeued(routingKey)
			return
		}

		c.client.config.Logger.Warn("Retry budget exhausted, rejecting message",
			"routing_key", routingKey,
			"message_id", delivery.MessageId,
			"attempts", attempts)
	}

	// Default policy: nack without requeue. The message is dropped unless
	// the queue carries a dead-letter exchange.
	if err := delivery.Nack(false, false); err != nil {
		c.client.config.Logger.Error("Failed to nack message",
			"routing_key", routingKey,
			"message_id", delivery.MessageId,
			"error", err.Error())
	}
}

// republish re-enqueues the message on the private queue via the default
// exchange with an incremented retry counter. The private queue is only
// reachable by name, so this does not fan out to other subscribers.
func (c *Consumer) republish(ch *amqp.Channel, queueName string, delivery *amqp.Delivery, attempt int) error {
	if ch == nil {
		return fmt.Errorf("no channel available for republish")
	}

	headers := amqp.Table{}
	for k, v := range delivery.Headers {
		headers[k] = v
	}
	headers["x-retry-count"] = int32(attempt)

	return ch.Publish(
		"", // default exchange routes directly to the queue
		queueName,
		false,
		false,
		amqp.Publishing{
			Headers:       headers,
			ContentType:   delivery.ContentType,
			Body:          delivery.Body,
			MessageId:     delivery.MessageId,
			CorrelationId: delivery.CorrelationId,
			Type:          delivery.Type,
			AppId:         delivery.AppId,
			Timestamp:     delivery.Timestamp,
			DeliveryMode:  delivery.DeliveryMode,
		},
	)
}

// retryCount extracts the application-tracked retry count from headers
func retryCount(delivery *amqp.Delivery) int {
	if delivery.Headers == nil {
		return 0
	}

	if v, ok := delivery.Headers["x-retry-count"]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int32:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return 0
}
