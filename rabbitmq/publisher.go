package rabbitmq

import (
	"context"
	"time"
)

// Publisher serializes domain events and hands them to the broker under a
// routing key on the shared exchange. Messages are marked persistent so
// they survive a broker restart. There is no local retry and no outbox: a
// failed publish is surfaced to the caller, which decides whether the
// surrounding saga step fails with it.
type Publisher struct {
	client *Client
	config *publisherConfig
}

// publisherConfig holds publisher-specific configuration
type publisherConfig struct {
	Persistent bool
	AppID      string
}

// PublisherOption represents a functional option for publisher configuration
type PublisherOption func(*publisherConfig)

// WithPersistent makes all messages persistent (the default)
func WithPersistent() PublisherOption {
	return func(config *publisherConfig) {
		config.Persistent = true
	}
}

// WithTransient makes all messages transient
func WithTransient() PublisherOption {
	return func(config *publisherConfig) {
		config.Persistent = false
	}
}

// WithAppID stamps published messages with the originating application ID
func WithAppID(appID string) PublisherOption {
	return func(config *publisherConfig) {
		config.AppID = appID
	}
}

// NewPublisher creates a new publisher from the client
func (c *Client) NewPublisher(opts ...PublisherOption) *Publisher {
	// Default configuration
	config := &publisherConfig{
		Persistent: true,
	}

	for _, opt := range opts {
		opt(config)
	}

	c.config.Logger.Debug("Publisher created",
		"connection_name", c.config.ConnectionName,
		"exchange", c.config.Exchange,
		"persistent", config.Persistent)

	return &Publisher{
		client: c,
		config: config,
	}
}

// Publish JSON-serializes payload and publishes it to the shared exchange
// under routingKey. The message is handed to the broker's channel
// synchronously; the first use lazily connects the client.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	message, err := NewJSONMessage(payload)
	if err != nil {
		return NewPublishError("failed to serialize payload", err)
	}
	message.Persistent = p.config.Persistent
	message.RoutingKey = routingKey
	message.Type = routingKey
	if p.config.AppID != "" {
		message.AppID = p.config.AppID
	}

	return p.publish(ctx, message)
}

// PublishMessage publishes a prepared message under its routing key
func (p *Publisher) PublishMessage(ctx context.Context, message *Message) error {
	if p.config.Persistent && !message.Persistent {
		message.Persistent = true
	}
	return p.publish(ctx, message)
}

func (p *Publisher) publish(ctx context.Context, message *Message) error {
	ch, err := p.client.channel(ctx)
	if err != nil {
		return NewPublishError("bus connection unavailable", err)
	}

	ctx, span := p.client.config.Tracer.StartSpan(ctx, "rabbitmq.publish")
	defer span.End()

	span.SetAttribute("exchange", p.client.config.Exchange)
	span.SetAttribute("routing_key", message.RoutingKey)
	span.SetAttribute("message_id", message.MessageID)

	start := time.Now()
	err = ch.PublishWithContext(
		ctx,
		p.client.config.Exchange,
		message.RoutingKey,
		false, // mandatory
		false, // immediate
		message.ToAMQPPublishing(),
	)

	duration := time.Since(start)
	p.client.config.Metrics.RecordPublish(message.RoutingKey, len(message.Body), duration)

	if err != nil {
		p.client.config.Metrics.RecordError("publish", err)
		span.SetStatus(SpanStatusError, err.Error())
		return NewPublishError(
			"failed to publish message to "+message.RoutingKey, err)
	}

	p.client.config.Logger.Debug("Event published",
		"exchange", p.client.config.Exchange,
		"routing_key", message.RoutingKey,
		"message_id", message.MessageID,
		"size", len(message.Body))

	span.SetStatus(SpanStatusOK, "")
	return nil
}
