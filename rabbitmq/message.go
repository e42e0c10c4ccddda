package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudresty/ulid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ContentType constants
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// generateMessageID creates a unique message ID using ULID
func generateMessageID() string {

	// ULIDs are time-sortable, globally unique and compact (26 chars)
	ulidStr, err := ulid.New()
	if err != nil {
		// Fallback to timestamp-based ID if ULID generation fails
		timestamp := time.Now().UnixNano()
		return fmt.Sprintf("msg-%d", timestamp)
	}
	return ulidStr

}

// Message represents an outbound event message with metadata
type Message struct {
	Body        []byte
	ContentType string
	Headers     map[string]any
	RoutingKey  string
	Persistent  bool
	// Message identification and tracing
	MessageID     string // Unique message identifier (auto-generated if empty)
	CorrelationID string // Correlation ID, carries the order ID across saga events
	// Message metadata
	Type      string // Message type/schema identifier
	AppID     string // Application ID that originated the message
	Timestamp int64  // Unix timestamp when message was created
}

// NewMessage creates a new Message with auto-generated ID and timestamp
func NewMessage(body []byte) *Message {

	return &Message{
		Body:        body,
		ContentType: ContentTypeJSON,
		Persistent:  true,
		MessageID:   generateMessageID(),
		Timestamp:   time.Now().Unix(),
		Headers:     make(map[string]any),
	}

}

// NewJSONMessage creates a new Message for JSON content by marshaling the provided value
func NewJSONMessage(v any) (*Message, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return NewMessage(body), nil
}

// WithCorrelationID sets the correlation ID
func (m *Message) WithCorrelationID(correlationID string) *Message {

	m.CorrelationID = correlationID
	return m

}

// WithType sets the message type identifier
func (m *Message) WithType(messageType string) *Message {

	m.Type = messageType
	return m

}

// WithAppID sets the originating application ID
func (m *Message) WithAppID(appID string) *Message {

	m.AppID = appID
	return m

}

// WithHeader adds a single header to the message
func (m *Message) WithHeader(key string, value any) *Message {

	if m.Headers == nil {
		m.Headers = make(map[string]any)
	}
	m.Headers[key] = value
	return m

}

// ToAMQPPublishing converts the Message to an amqp.Publishing
func (m *Message) ToAMQPPublishing() amqp.Publishing {
	deliveryMode := uint8(1) // Transient
	if m.Persistent {
		deliveryMode = 2 // Persistent
	}

	contentType := m.ContentType
	if contentType == "" {
		contentType = ContentTypeJSON
	}

	messageID := m.MessageID
	if messageID == "" {
		messageID = generateMessageID()
	}

	return amqp.Publishing{
		Headers:       amqp.Table(m.Headers),
		ContentType:   contentType,
		Body:          m.Body,
		MessageId:     messageID,
		CorrelationId: m.CorrelationID,
		Timestamp:     time.Unix(m.Timestamp, 0),
		Type:          m.Type,
		AppId:         m.AppID,
		DeliveryMode:  deliveryMode,
	}
}

// Delivery wraps amqp.Delivery with additional helper methods
type Delivery struct {
	amqp.Delivery

	// Additional metadata
	ReceivedAt time.Time
}

// Decode unmarshals the delivery body as JSON into v
func (d *Delivery) Decode(v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("failed to decode message body: %w", err)
	}
	return nil
}

// MessageID returns the message ID
func (d *Delivery) MessageID() string {
	return d.MessageId
}

// IsRedelivered returns true if the message was redelivered
func (d *Delivery) IsRedelivered() bool {
	return d.Redelivered
}

// Ack acknowledges the message
func (d *Delivery) Ack() error {
	return d.Delivery.Ack(false)
}

// Nack negatively acknowledges the message with requeue option
func (d *Delivery) Nack(requeue bool) error {
	return d.Delivery.Nack(false, requeue)
}

// Error types for better error handling
type Error struct {
	Type    string
	Message string
	Cause   error
}

func (e *Error) Error() string {

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)

}

func (e *Error) Unwrap() error {

	return e.Cause

}

// NewConnectionError creates a new connection error
func NewConnectionError(message string, cause error) *Error {

	return &Error{
		Type:    "ConnectionError",
		Message: message,
		Cause:   cause,
	}

}

// NewPublishError creates a new publish error
func NewPublishError(message string, cause error) *Error {

	return &Error{
		Type:    "PublishError",
		Message: message,
		Cause:   cause,
	}

}

// NewConsumeError creates a new consume error
func NewConsumeError(message string, cause error) *Error {

	return &Error{
		Type:    "ConsumeError",
		Message: message,
		Cause:   cause,
	}

}
