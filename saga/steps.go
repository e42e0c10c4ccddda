package saga

import (
	"context"
	"fmt"

	"github.com/smartcampus/order-saga/rabbitmq"
)

// EventPublisher publishes domain events to the shared bus
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// InventoryService is the remote inventory collaborator
type InventoryService interface {
	// Reserve decrements stock for one item and records the reservation.
	// It fails if the product is unknown or stock is insufficient.
	Reserve(ctx context.Context, productID string, quantity int, orderID string) error

	// Release restores stock for every open reservation tied to the order.
	// It is idempotent; releasing an order with no reservations is a no-op.
	Release(ctx context.Context, orderID string) error
}

// PaymentService is the remote payment collaborator
type PaymentService interface {
	Process(ctx context.Context, orderID string, amount float64) error
	Refund(ctx context.Context, orderID string, amount float64) error
}

// NewOrderSteps builds the fixed step list for one order purchase saga:
// reserve inventory, process payment, confirm order.
func NewOrderSteps(event OrderCreatedEvent, publisher EventPublisher, inventory InventoryService, payment PaymentService) []Step {
	return []Step{
		&reserveInventoryStep{event: event, publisher: publisher, inventory: inventory},
		&processPaymentStep{event: event, publisher: publisher, payment: payment},
		&confirmOrderStep{event: event, publisher: publisher},
	}
}

// reserveInventoryStep reserves stock for every item of the order, then
// announces the reservation. Its compensation releases all reservations
// tied to the order with a single call, so a failure partway through the
// item loop still gets fully undone once the step has succeeded before.
type reserveInventoryStep struct {
	event     OrderCreatedEvent
	publisher EventPublisher
	inventory InventoryService
}

func (s *reserveInventoryStep) Name() string { return "ReserveInventory" }

func (s *reserveInventoryStep) Execute(ctx context.Context) error {
	for _, item := range s.event.Items {
		if err := s.inventory.Reserve(ctx, item.ProductID, item.Quantity, s.event.OrderID); err != nil {
			return fmt.Errorf("reserve %s x%d: %w", item.ProductID, item.Quantity, err)
		}
	}

	return s.publisher.Publish(ctx, EventInventoryReserved, InventoryReservedEvent{
		OrderID:     s.event.OrderID,
		Items:       s.event.Items,
		TotalAmount: s.event.TotalAmount,
	})
}

func (s *reserveInventoryStep) Compensate(ctx context.Context) error {
	return s.inventory.Release(ctx, s.event.OrderID)
}

// processPaymentStep charges the order total, then announces the payment.
// Its compensation requests a refund; refund failures are swallowed by the
// orchestrator's compensation loop.
type processPaymentStep struct {
	event     OrderCreatedEvent
	publisher EventPublisher
	payment   PaymentService
}

func (s *processPaymentStep) Name() string { return "ProcessPayment" }

func (s *processPaymentStep) Execute(ctx context.Context) error {
	if err := s.payment.Process(ctx, s.event.OrderID, s.event.TotalAmount); err != nil {
		return fmt.Errorf("process payment for order %s: %w", s.event.OrderID, err)
	}

	return s.publisher.Publish(ctx, EventPaymentProcessed, PaymentProcessedEvent{
		OrderID: s.event.OrderID,
		Amount:  s.event.TotalAmount,
		Status:  "success",
	})
}

func (s *processPaymentStep) Compensate(ctx context.Context) error {
	return s.payment.Refund(ctx, s.event.OrderID, s.event.TotalAmount)
}

// confirmOrderStep performs no remote call; it only publishes the terminal
// confirmation event. Its compensation announces the cancellation.
type confirmOrderStep struct {
	event     OrderCreatedEvent
	publisher EventPublisher
}

func (s *confirmOrderStep) Name() string { return "ConfirmOrder" }

func (s *confirmOrderStep) Execute(ctx context.Context) error {
	return s.publisher.Publish(ctx, EventOrderConfirmed, OrderConfirmedEvent{
		OrderID:     s.event.OrderID,
		UserID:      s.event.UserID,
		TotalAmount: s.event.TotalAmount,
	})
}

func (s *confirmOrderStep) Compensate(ctx context.Context) error {
	return s.publisher.Publish(ctx, EventOrderCancelled, OrderCancelledEvent{
		OrderID: s.event.OrderID,
	})
}

// compile-time interface checks
var (
	_ Step           = (*reserveInventoryStep)(nil)
	_ Step           = (*processPaymentStep)(nil)
	_ Step           = (*confirmOrderStep)(nil)
	_ EventPublisher = (*rabbitmq.Publisher)(nil)
)
