package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/smartcampus/order-saga/rabbitmq"
	"github.com/sony/gobreaker"
)

// PaymentClient calls the payment service's processing endpoints. Calls go
// through a circuit breaker: the payment provider is the least reliable
// dependency of the saga, and an open breaker fails charge attempts fast
// instead of letting every saga run wait out the full timeout.
type PaymentClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  rabbitmq.Logger
}

// PaymentOption configures a PaymentClient
type PaymentOption func(*PaymentClient)

// WithPaymentHTTPClient overrides the underlying HTTP client
func WithPaymentHTTPClient(client *http.Client) PaymentOption {
	return func(c *PaymentClient) {
		c.client = client
	}
}

// WithPaymentTimeout overrides the per-call timeout
func WithPaymentTimeout(timeout time.Duration) PaymentOption {
	return func(c *PaymentClient) {
		c.client.Timeout = timeout
	}
}

// WithPaymentLogger sets the logger
func WithPaymentLogger(logger rabbitmq.Logger) PaymentOption {
	return func(c *PaymentClient) {
		c.logger = logger
	}
}

// NewPaymentClient creates a client for the payment service at baseURL,
// e.g. http://payment-service:3005.
func NewPaymentClient(baseURL string, opts ...PaymentOption) *PaymentClient {
	c := &PaymentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  rabbitmq.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	settings := gobreaker.Settings{
		Name:        "PaymentService",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// A declined payment counts as a failure here too; the breaker
			// only opens under a sustained failure ratio, which a healthy
			// provider's occasional declines will not reach.
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker(settings)

	return c
}

type paymentRequest struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
}

// Process charges the order total. A declined payment comes back as a
// StatusError; callers cannot distinguish a decline from an outage and
// treat both as step failure.
func (c *PaymentClient) Process(ctx context.Context, orderID string, amount float64) error {
	c.logger.Debug("Processing payment",
		"order_id", orderID,
		"amount", amount)

	return c.post(ctx, c.baseURL+"/payments/process", paymentRequest{
		OrderID: orderID,
		Amount:  amount,
	})
}

// Refund reverses a charge. It is best-effort from the saga's point of
// view; the compensation loop logs but never propagates refund failures.
func (c *PaymentClient) Refund(ctx context.Context, orderID string, amount float64) error {
	c.logger.Debug("Refunding payment",
		"order_id", orderID,
		"amount", amount)

	return c.post(ctx, c.baseURL+"/payments/refund", paymentRequest{
		OrderID: orderID,
		Amount:  amount,
	})
}

func (c *PaymentClient) post(ctx context.Context, url string, body any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, postJSON(ctx, c.client, "payment service", url, body)
	})
	return err
}
