// Package saga coordinates the multi-step order purchase transaction.
//
// A saga run executes a fixed list of steps in order (reserve inventory,
// process payment, confirm order). Each step that succeeds is remembered;
// when a step fails, every previously succeeded step is compensated in
// reverse order and the original failure is returned to the caller. One
// orchestrator instance exists per order event and is discarded when the
// run ends.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudresty/ulid"
	"github.com/smartcampus/order-saga/rabbitmq"
)

// State represents the current state of a saga run
type State string

const (
	StateStarted      State = "started"
	StateCompleted    State = "completed"
	StateCompensating State = "compensating"
	StateFailed       State = "failed"
)

// Orchestrator drives one saga run to completion or compensated failure.
// It is not safe for concurrent use; build a fresh instance per run.
type Orchestrator struct {
	runID    string
	orderID  string
	steps    []Step
	executed []Step
	state    State
	logger   rabbitmq.Logger
}

// NewOrchestrator creates an orchestrator for one order's step list
func NewOrchestrator(orderID string, steps []Step, logger rabbitmq.Logger) *Orchestrator {
	if logger == nil {
		logger = rabbitmq.NewNopLogger()
	}

	runID, err := ulid.New()
	if err != nil {
		runID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}

	return &Orchestrator{
		runID:   runID,
		orderID: orderID,
		steps:   steps,
		state:   StateStarted,
		logger:  logger,
	}
}

// State returns the current run state
func (o *Orchestrator) State() State {
	return o.state
}

// Execute runs the steps in order. On the first step failure it compensates
// all previously succeeded steps in reverse order and returns the original
// failure. A compensation failure is logged and never interrupts the loop,
// so every succeeded step gets exactly one compensation attempt.
func (o *Orchestrator) Execute(ctx context.Context) error {
	o.logger.Info("Saga started",
		"run_id", o.runID,
		"order_id", o.orderID,
		"steps", len(o.steps))

	for _, step := range o.steps {
		o.logger.Info("Executing saga step",
			"run_id", o.runID,
			"order_id", o.orderID,
			"step", step.Name())

		if err := step.Execute(ctx); err != nil {
			o.logger.Error("Saga step failed",
				"run_id", o.runID,
				"order_id", o.orderID,
				"step", step.Name(),
				"error", err.Error())

			o.compensate(ctx)
			o.state = StateFailed

			return fmt.Errorf("saga for order %s failed at step %s: %w",
				o.orderID, step.Name(), err)
		}

		o.executed = append(o.executed, step)
	}

	o.state = StateCompleted
	o.logger.Info("Saga completed",
		"run_id", o.runID,
		"order_id", o.orderID)

	return nil
}

// compensate undoes the executed steps in reverse order. Errors are logged
// and swallowed; the executed list is cleared when the loop finishes.
func (o *Orchestrator) compensate(ctx context.Context) {
	o.state = StateCompensating
	o.logger.Warn("Compensating saga",
		"run_id", o.runID,
		"order_id", o.orderID,
		"executed_steps", len(o.executed))

	for i := len(o.executed) - 1; i >= 0; i-- {
		step := o.executed[i]

		o.logger.Info("Compensating saga step",
			"run_id", o.runID,
			"order_id", o.orderID,
			"step", step.Name())

		if err := step.Compensate(ctx); err != nil {
			o.logger.Error("Saga step compensation failed",
				"run_id", o.runID,
				"order_id", o.orderID,
				"step", step.Name(),
				"error", err.Error())
		}
	}

	o.executed = nil
}
