// Package shutdown provides coordinated graceful shutdown for the saga
// orchestrator process. It handles signal management, timeout control, and
// ordered teardown of registered components.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/smartcampus/order-saga/rabbitmq"
)

// DefaultTimeout bounds how long Shutdown waits for components to close
const DefaultTimeout = 30 * time.Second

// Manager coordinates graceful shutdown of registered components.
// Components are closed in reverse registration order, so registering the
// bus client before the consumers and the HTTP server means in-flight
// traffic is drained before the connection drops.
type Manager struct {
	mu         sync.Mutex
	components []rabbitmq.Closable
	timeout    time.Duration
	logger     rabbitmq.Logger
	done       chan struct{}
	once       sync.Once
}

// Config holds configuration for the shutdown manager
type Config struct {
	Timeout time.Duration   // overall shutdown timeout, DefaultTimeout if zero
	Logger  rabbitmq.Logger // nil means no logging
}

// NewManager creates a new shutdown manager
func NewManager(config Config) *Manager {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = rabbitmq.NewNopLogger()
	}

	return &Manager{
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Register adds a component to be closed during shutdown
func (m *Manager) Register(component rabbitmq.Closable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)

	m.logger.Debug("Component registered for graceful shutdown",
		"total_components", len(m.components))
}

// RegisterFunc adds a closure to be run during shutdown
func (m *Manager) RegisterFunc(fn func() error) {
	m.Register(closerFunc(fn))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// SetupSignalHandler installs a handler for SIGINT, SIGTERM and SIGHUP
// that triggers shutdown when the first signal arrives
func (m *Manager) SetupSignalHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		sig := <-sigChan
		m.logger.Info("Received shutdown signal", "signal", sig.String())
		m.Shutdown()
	}()
}

// Shutdown closes all registered components, bounded by the configured
// timeout. It is safe to call multiple times; only the first call runs.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		components := make([]rabbitmq.Closable, len(m.components))
		copy(components, m.components)
		m.mu.Unlock()

		m.logger.Info("Starting graceful shutdown",
			"timeout", m.timeout,
			"components", len(components))

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			m.closeAll(components)
		}()

		select {
		case <-finished:
			m.logger.Info("Graceful shutdown completed")
		case <-ctx.Done():
			m.logger.Warn("Graceful shutdown timeout exceeded",
				"timeout", m.timeout)
		}

		close(m.done)
	})
}

// closeAll closes components in reverse registration order
func (m *Manager) closeAll(components []rabbitmq.Closable) {
	errorCount := 0
	for i := len(components) - 1; i >= 0; i-- {
		if err := components[i].Close(); err != nil {
			errorCount++
			m.logger.Error("Error shutting down component",
				"component_index", i,
				"error", err.Error())
		}
	}

	if errorCount > 0 {
		m.logger.Warn("Some components failed to shut down cleanly",
			"error_count", errorCount,
			"total_components", len(components))
	}
}

// Wait blocks until shutdown is complete
func (m *Manager) Wait() {
	<-m.done
}

// WaitWithContext blocks until shutdown is complete or the context is cancelled
func (m *Manager) WaitWithContext(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown returns true if shutdown has been initiated and completed
func (m *Manager) IsShutdown() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}
