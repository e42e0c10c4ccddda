// Command saga-orchestrator runs the order purchase saga service. It
// subscribes to order.created on the shared event bus, drives one saga run
// per order through inventory reservation, payment and confirmation, and
// compensates completed steps when a later one fails.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cloudresty/go-env"
	"github.com/smartcampus/order-saga/httpclient"
	"github.com/smartcampus/order-saga/rabbitmq"
	"github.com/smartcampus/order-saga/saga"
	"github.com/smartcampus/order-saga/shutdown"
)

// serviceConfig holds the orchestrator's own settings; bus settings are
// bound separately by rabbitmq.FromEnv.
type serviceConfig struct {
	InventoryServiceURL string `env:"INVENTORY_SERVICE_URL,default=http://inventory-service:3004"`
	PaymentServiceURL   string `env:"PAYMENT_SERVICE_URL,default=http://payment-service:3005"`
	Port                int    `env:"PORT,default=3007"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "saga-orchestrator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg serviceConfig
	if err := env.Bind(&cfg, env.DefaultBindingOptions()); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	logger := rabbitmq.NewConsoleLogger(rabbitmq.ParseLogLevel(cfg.LogLevel))

	busEnv, err := rabbitmq.LoadEnvConfig()
	if err != nil {
		return fmt.Errorf("parse bus environment: %w", err)
	}

	client, err := rabbitmq.NewClient(
		rabbitmq.FromEnv(),
		rabbitmq.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create bus client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := connectWithRetry(ctx, client, busEnv.ConnectPolicy(), logger); err != nil {
		return err
	}

	publisher := client.NewPublisher(rabbitmq.WithAppID("saga-orchestrator"))
	consumer := client.NewConsumer()

	inventory := httpclient.NewInventoryClient(cfg.InventoryServiceURL,
		httpclient.WithInventoryLogger(logger))
	payment := httpclient.NewPaymentClient(cfg.PaymentServiceURL,
		httpclient.WithPaymentLogger(logger))

	trigger := saga.NewTrigger(consumer, publisher, inventory, payment, logger)

	manager := shutdown.NewManager(shutdown.Config{Logger: logger})
	manager.SetupSignalHandler()
	manager.Register(client)
	manager.RegisterFunc(func() error {
		cancel()
		return nil
	})

	healthSrv := startHealthServer(cfg.Port, client, logger)
	manager.RegisterFunc(func() error {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return healthSrv.Shutdown(shutdownCtx)
	})

	go func() {
		if err := trigger.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Saga trigger stopped", "error", err.Error())
			manager.Shutdown()
		}
	}()

	logger.Info("Saga orchestrator started",
		"port", cfg.Port,
		"inventory_service", cfg.InventoryServiceURL,
		"payment_service", cfg.PaymentServiceURL)

	manager.Wait()
	return nil
}

// connectWithRetry dials the broker until it succeeds or the policy's
// attempt budget runs out. The broker often comes up after this service
// in a fresh deployment, so startup waits instead of crash-looping.
func connectWithRetry(ctx context.Context, client *rabbitmq.Client, policy rabbitmq.ReconnectPolicy, logger rabbitmq.Logger) error {
	for attempt := 1; ; attempt++ {
		err := client.Connect(ctx)
		if err == nil {
			return nil
		}

		if !policy.ShouldRetry(attempt, err) {
			return fmt.Errorf("connect to broker after %d attempts: %w", attempt, err)
		}

		delay := policy.NextDelay(attempt)
		logger.Warn("Broker not reachable, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// startHealthServer serves the liveness endpoint in the background
func startHealthServer(port int, client *rabbitmq.Client, logger rabbitmq.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := client.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"service": "saga-orchestrator",
		})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server stopped", "error", err.Error())
		}
	}()

	return srv
}
