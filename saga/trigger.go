package saga

import (
	"context"
	"fmt"

	"github.com/smartcampus/order-saga/rabbitmq"
)

// Trigger is the service entrypoint: it subscribes to order creation events
// and runs one fresh orchestrator per delivered event.
//
// There is no dedup or per-order mutual exclusion. Two deliveries carrying
// the same orderId run two fully independent saga instances, which can
// double-reserve and double-charge. Callers that need exactly-once saga
// initiation must dedupe upstream.
type Trigger struct {
	consumer  *rabbitmq.Consumer
	publisher EventPublisher
	inventory InventoryService
	payment   PaymentService
	logger    rabbitmq.Logger
}

// NewTrigger wires the saga entrypoint to its collaborators
func NewTrigger(consumer *rabbitmq.Consumer, publisher EventPublisher, inventory InventoryService, payment PaymentService, logger rabbitmq.Logger) *Trigger {
	if logger == nil {
		logger = rabbitmq.NewNopLogger()
	}

	return &Trigger{
		consumer:  consumer,
		publisher: publisher,
		inventory: inventory,
		payment:   payment,
		logger:    logger,
	}
}

// Run subscribes to order.created and blocks handling deliveries until ctx
// is cancelled. A failed saga returns its error to the consumer, which
// rejects the delivery without requeue, so a failed run is not retried.
func (t *Trigger) Run(ctx context.Context) error {
	return t.consumer.Subscribe(ctx, EventOrderCreated, t.handleOrderCreated)
}

// handleOrderCreated decodes one order event and drives a saga run for it
func (t *Trigger) handleOrderCreated(ctx context.Context, delivery *rabbitmq.Delivery) error {
	var event OrderCreatedEvent
	if err := delivery.Decode(&event); err != nil {
		return fmt.Errorf("decode order event: %w", err)
	}

	if event.OrderID == "" {
		return fmt.Errorf("order event missing orderId")
	}

	t.logger.Info("Order created, starting saga",
		"order_id", event.OrderID,
		"user_id", event.UserID,
		"items", len(event.Items),
		"total_amount", event.TotalAmount)

	steps := NewOrderSteps(event, t.publisher, t.inventory, t.payment)
	orchestrator := NewOrchestrator(event.OrderID, steps, t.logger)

	return orchestrator.Execute(ctx)
}
