package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/smartcampus/order-saga/rabbitmq"
)

// InventoryClient calls the inventory service's reservation endpoints
type InventoryClient struct {
	baseURL string
	client  *http.Client
	logger  rabbitmq.Logger
}

// InventoryOption configures an InventoryClient
type InventoryOption func(*InventoryClient)

// WithInventoryHTTPClient overrides the underlying HTTP client
func WithInventoryHTTPClient(client *http.Client) InventoryOption {
	return func(c *InventoryClient) {
		c.client = client
	}
}

// WithInventoryTimeout overrides the per-call timeout
func WithInventoryTimeout(timeout time.Duration) InventoryOption {
	return func(c *InventoryClient) {
		c.client.Timeout = timeout
	}
}

// WithInventoryLogger sets the logger
func WithInventoryLogger(logger rabbitmq.Logger) InventoryOption {
	return func(c *InventoryClient) {
		c.logger = logger
	}
}

// NewInventoryClient creates a client for the inventory service at baseURL,
// e.g. http://inventory-service:3004.
func NewInventoryClient(baseURL string, opts ...InventoryOption) *InventoryClient {
	c := &InventoryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  rabbitmq.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type reserveRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	OrderID   string `json:"orderId"`
}

type releaseRequest struct {
	OrderID string `json:"orderId"`
}

// Reserve decrements stock for one item and records a reservation tied to
// the order. The service rejects unknown products and insufficient stock.
func (c *InventoryClient) Reserve(ctx context.Context, productID string, quantity int, orderID string) error {
	c.logger.Debug("Reserving inventory",
		"product_id", productID,
		"quantity", quantity,
		"order_id", orderID)

	return postJSON(ctx, c.client, "inventory service", c.baseURL+"/inventory/reserve", reserveRequest{
		ProductID: productID,
		Quantity:  quantity,
		OrderID:   orderID,
	})
}

// Release restores stock for every open reservation tied to the order.
// The endpoint is idempotent; releasing twice or releasing an order with
// no reservations succeeds as a no-op.
func (c *InventoryClient) Release(ctx context.Context, orderID string) error {
	c.logger.Debug("Releasing inventory", "order_id", orderID)

	return postJSON(ctx, c.client, "inventory service", c.baseURL+"/inventory/release", releaseRequest{
		OrderID: orderID,
	})
}
