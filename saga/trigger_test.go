package saga

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smartcampus/order-saga/rabbitmq"
)

func orderDelivery(t *testing.T, event OrderCreatedEvent) *rabbitmq.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &rabbitmq.Delivery{Delivery: amqp.Delivery{Body: body}}
}

func newTestTrigger(publisher *fakePublisher, inventory *fakeInventory, payment *fakePayment) *Trigger {
	return NewTrigger(nil, publisher, inventory, payment, nil)
}

func TestTriggerRunsSagaForOrderEvent(t *testing.T) {
	publisher := &fakePublisher{}
	inventory := &fakeInventory{}
	payment := &fakePayment{}
	trigger := newTestTrigger(publisher, inventory, payment)

	err := trigger.handleOrderCreated(context.Background(), orderDelivery(t, testOrderEvent()))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	want := []string{EventInventoryReserved, EventPaymentProcessed, EventOrderConfirmed}
	assertTrace(t, publisher.published, want)
}

func TestTriggerReturnsSagaFailureToConsumer(t *testing.T) {
	publisher := &fakePublisher{}
	inventory := &fakeInventory{reserveErrAt: 1}
	payment := &fakePayment{}
	trigger := newTestTrigger(publisher, inventory, payment)

	err := trigger.handleOrderCreated(context.Background(), orderDelivery(t, testOrderEvent()))
	if err == nil {
		t.Fatal("expected the saga failure to propagate so the delivery is rejected")
	}
}

func TestTriggerRejectsMalformedPayload(t *testing.T) {
	trigger := newTestTrigger(&fakePublisher{}, &fakeInventory{}, &fakePayment{})

	delivery := &rabbitmq.Delivery{Delivery: amqp.Delivery{Body: []byte("not json")}}
	if err := trigger.handleOrderCreated(context.Background(), delivery); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestTriggerRejectsEventWithoutOrderID(t *testing.T) {
	trigger := newTestTrigger(&fakePublisher{}, &fakeInventory{}, &fakePayment{})

	delivery := orderDelivery(t, OrderCreatedEvent{UserID: "user-1"})
	if err := trigger.handleOrderCreated(context.Background(), delivery); err == nil {
		t.Fatal("expected rejection of event without orderId")
	}
}

func TestTriggerDuplicateDeliveriesRunIndependentSagas(t *testing.T) {
	// There is no dedup: the same order delivered twice runs two full
	// sagas, reserving and charging twice.
	publisher := &fakePublisher{}
	inventory := &fakeInventory{}
	payment := &fakePayment{}
	trigger := newTestTrigger(publisher, inventory, payment)

	for i := 0; i < 2; i++ {
		if err := trigger.handleOrderCreated(context.Background(), orderDelivery(t, testOrderEvent())); err != nil {
			t.Fatalf("run %d: expected success, got %v", i, err)
		}
	}

	if inventory.reserveCalls != 2 {
		t.Errorf("expected 2 reserve calls, got %d", inventory.reserveCalls)
	}
	if payment.processCalls != 2 {
		t.Errorf("expected 2 payment calls, got %d", payment.processCalls)
	}
}
