package saga

import (
	"context"
	"errors"
	"testing"
)

// fakePublisher records published events in order
type fakePublisher struct {
	published []string
	payloads  []any
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, routingKey)
	p.payloads = append(p.payloads, payload)
	return nil
}

// fakeInventory tracks reserve and release calls per order
type fakeInventory struct {
	reserved     []string // productIDs in call order
	releaseCalls int
	reserveErrAt int // 1-based call index that fails, 0 for never
	reserveCalls int
}

func (f *fakeInventory) Reserve(ctx context.Context, productID string, quantity int, orderID string) error {
	f.reserveCalls++
	if f.reserveErrAt > 0 && f.reserveCalls >= f.reserveErrAt {
		return errors.New("insufficient stock")
	}
	f.reserved = append(f.reserved, productID)
	return nil
}

func (f *fakeInventory) Release(ctx context.Context, orderID string) error {
	f.releaseCalls++
	return nil
}

// fakePayment tracks process and refund calls
type fakePayment struct {
	processCalls int
	refundCalls  int
	processErr   error
}

func (f *fakePayment) Process(ctx context.Context, orderID string, amount float64) error {
	f.processCalls++
	return f.processErr
}

func (f *fakePayment) Refund(ctx context.Context, orderID string, amount float64) error {
	f.refundCalls++
	return nil
}

func testOrderEvent() OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID: "order-1",
		UserID:  "user-1",
		Items: []OrderItem{
			{ProductID: "laptop", Quantity: 1, PriceAtTime: 999.99},
		},
		TotalAmount: 999.99,
	}
}

func TestSagaHappyPathEmitsForwardEventsInOrder(t *testing.T) {
	publisher := &fakePublisher{}
	inventory := &fakeInventory{}
	payment := &fakePayment{}

	steps := NewOrderSteps(testOrderEvent(), publisher, inventory, payment)
	o := NewOrchestrator("order-1", steps, nil)

	if err := o.Execute(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	want := []string{EventInventoryReserved, EventPaymentProcessed, EventOrderConfirmed}
	assertTrace(t, publisher.published, want)

	if inventory.releaseCalls != 0 {
		t.Errorf("expected no release calls, got %d", inventory.releaseCalls)
	}
	if payment.refundCalls != 0 {
		t.Errorf("expected no refund calls, got %d", payment.refundCalls)
	}
	if payment.processCalls != 1 {
		t.Errorf("expected one payment, got %d", payment.processCalls)
	}
}

func TestSagaReservationFailureMakesNoExternalChanges(t *testing.T) {
	publisher := &fakePublisher{}
	inventory := &fakeInventory{reserveErrAt: 1}
	payment := &fakePayment{}

	steps := NewOrderSteps(testOrderEvent(), publisher, inventory, payment)
	o := NewOrchestrator("order-1", steps, nil)

	if err := o.Execute(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	if len(publisher.published) != 0 {
		t.Errorf("expected no events, got %v", publisher.published)
	}
	if inventory.releaseCalls != 0 {
		t.Errorf("expected no release calls, got %d", inventory.releaseCalls)
	}
	if payment.processCalls != 0 || payment.refundCalls != 0 {
		t.Errorf("expected no payment activity, got process=%d refund=%d",
			payment.processCalls, payment.refundCalls)
	}
}

func TestSagaPaymentFailureReleasesInventoryOnly(t *testing.T) {
	publisher := &fakePublisher{}
	inventory := &fakeInventory{}
	payment := &fakePayment{processErr: errors.New("card declined")}

	steps := NewOrderSteps(testOrderEvent(), publisher, inventory, payment)
	o := NewOrchestrator("order-1", steps, nil)

	err := o.Execute(context.Background())
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, payment.processErr) {
		t.Errorf("expected payment error in chain, got %v", err)
	}

	// Only the reservation announcement went out before the failure
	assertTrace(t, publisher.published, []string{EventInventoryReserved})

	if inventory.releaseCalls != 1 {
		t.Errorf("expected one release call, got %d", inventory.releaseCalls)
	}
	// ProcessPayment never succeeded, so its compensation must not run
	if payment.refundCalls != 0 {
		t.Errorf("expected no refund calls, got %d", payment.refundCalls)
	}
}

func TestReserveInventoryStepReservesEveryItem(t *testing.T) {
	event := OrderCreatedEvent{
		OrderID: "order-2",
		UserID:  "user-1",
		Items: []OrderItem{
			{ProductID: "laptop", Quantity: 1, PriceAtTime: 999.99},
			{ProductID: "mouse", Quantity: 2, PriceAtTime: 19.99},
		},
		TotalAmount: 1039.97,
	}

	publisher := &fakePublisher{}
	inventory := &fakeInventory{}
	step := &reserveInventoryStep{event: event, publisher: publisher, inventory: inventory}

	if err := step.Execute(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	assertTrace(t, inventory.reserved, []string{"laptop", "mouse"})
	assertTrace(t, publisher.published, []string{EventInventoryReserved})

	reserved, ok := publisher.payloads[0].(InventoryReservedEvent)
	if !ok {
		t.Fatalf("expected InventoryReservedEvent payload, got %T", publisher.payloads[0])
	}
	if reserved.OrderID != "order-2" || reserved.TotalAmount != 1039.97 {
		t.Errorf("unexpected payload %+v", reserved)
	}
}

func TestReserveInventoryStepStopsOnFirstFailedItem(t *testing.T) {
	event := OrderCreatedEvent{
		OrderID: "order-2",
		Items: []OrderItem{
			{ProductID: "laptop", Quantity: 1},
			{ProductID: "mouse", Quantity: 500},
			{ProductID: "keyboard", Quantity: 1},
		},
	}

	publisher := &fakePublisher{}
	inventory := &fakeInventory{reserveErrAt: 2}
	step := &reserveInventoryStep{event: event, publisher: publisher, inventory: inventory}

	if err := step.Execute(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	// The first item was reserved, the third was never attempted, and the
	// reservation event must not go out.
	assertTrace(t, inventory.reserved, []string{"laptop"})
	if inventory.reserveCalls != 2 {
		t.Errorf("expected 2 reserve calls, got %d", inventory.reserveCalls)
	}
	if len(publisher.published) != 0 {
		t.Errorf("expected no events, got %v", publisher.published)
	}
}

func TestReserveInventoryStepFailsWhenPublishFails(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker unreachable")}
	inventory := &fakeInventory{}
	step := &reserveInventoryStep{event: testOrderEvent(), publisher: publisher, inventory: inventory}

	if err := step.Execute(context.Background()); err == nil {
		t.Fatal("expected failure when publish fails")
	}
}

func TestProcessPaymentStepPublishesSuccessStatus(t *testing.T) {
	publisher := &fakePublisher{}
	payment := &fakePayment{}
	step := &processPaymentStep{event: testOrderEvent(), publisher: publisher, payment: payment}

	if err := step.Execute(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	processed, ok := publisher.payloads[0].(PaymentProcessedEvent)
	if !ok {
		t.Fatalf("expected PaymentProcessedEvent payload, got %T", publisher.payloads[0])
	}
	if processed.Status != "success" {
		t.Errorf("expected status success, got %q", processed.Status)
	}
	if processed.Amount != 999.99 {
		t.Errorf("expected amount 999.99, got %v", processed.Amount)
	}
}

func TestConfirmOrderStepCompensationPublishesCancellation(t *testing.T) {
	publisher := &fakePublisher{}
	step := &confirmOrderStep{event: testOrderEvent(), publisher: publisher}

	if err := step.Compensate(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	assertTrace(t, publisher.published, []string{EventOrderCancelled})

	cancelled, ok := publisher.payloads[0].(OrderCancelledEvent)
	if !ok {
		t.Fatalf("expected OrderCancelledEvent payload, got %T", publisher.payloads[0])
	}
	if cancelled.OrderID != "order-1" {
		t.Errorf("expected orderId order-1, got %q", cancelled.OrderID)
	}
}
