package saga

// Routing keys for order lifecycle events on the shared topic exchange
const (
	EventOrderCreated      = "order.created"
	EventInventoryReserved = "inventory.reserved"
	EventPaymentProcessed  = "payment.processed"
	EventOrderConfirmed    = "order.confirmed"
	EventOrderCancelled    = "order.cancelled"
	EventPaymentRefunded   = "payment.refunded"
)

// OrderItem is one line of an order
type OrderItem struct {
	ProductID   string  `json:"productId"`
	Quantity    int     `json:"quantity"`
	PriceAtTime float64 `json:"priceAtTime"`
}

// OrderCreatedEvent is the immutable input to a saga run, published by the
// marketplace when a customer places an order. TotalAmount is computed by
// the publisher and trusted as-is.
type OrderCreatedEvent struct {
	OrderID     string      `json:"orderId"`
	UserID      string      `json:"userId"`
	Items       []OrderItem `json:"items"`
	TotalAmount float64     `json:"totalAmount"`
}

// InventoryReservedEvent is published after every item of an order has been
// reserved against stock.
type InventoryReservedEvent struct {
	OrderID     string      `json:"orderId"`
	Items       []OrderItem `json:"items"`
	TotalAmount float64     `json:"totalAmount"`
}

// PaymentProcessedEvent is published after payment for an order succeeds
type PaymentProcessedEvent struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
	Status  string  `json:"status"`
}

// OrderConfirmedEvent is published when the saga completes successfully
type OrderConfirmedEvent struct {
	OrderID     string  `json:"orderId"`
	UserID      string  `json:"userId"`
	TotalAmount float64 `json:"totalAmount"`
}

// OrderCancelledEvent is published during compensation to signal that the
// order did not complete.
type OrderCancelledEvent struct {
	OrderID string `json:"orderId"`
}
