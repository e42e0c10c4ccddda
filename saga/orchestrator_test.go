package saga

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// recordingStep logs execute and compensate calls into a shared trace
type recordingStep struct {
	name          string
	executeErr    error
	compensateErr error
	trace         *[]string
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Execute(ctx context.Context) error {
	*s.trace = append(*s.trace, "execute:"+s.name)
	return s.executeErr
}

func (s *recordingStep) Compensate(ctx context.Context) error {
	*s.trace = append(*s.trace, "compensate:"+s.name)
	return s.compensateErr
}

func TestOrchestratorExecutesAllStepsInOrder(t *testing.T) {
	var trace []string
	steps := []Step{
		&recordingStep{name: "first", trace: &trace},
		&recordingStep{name: "second", trace: &trace},
		&recordingStep{name: "third", trace: &trace},
	}

	o := NewOrchestrator("order-1", steps, nil)
	if err := o.Execute(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	want := []string{"execute:first", "execute:second", "execute:third"}
	assertTrace(t, trace, want)

	if o.State() != StateCompleted {
		t.Errorf("expected state %q, got %q", StateCompleted, o.State())
	}
}

func TestOrchestratorCompensatesInReverseOrder(t *testing.T) {
	var trace []string
	stepErr := errors.New("payment declined")
	steps := []Step{
		&recordingStep{name: "first", trace: &trace},
		&recordingStep{name: "second", trace: &trace},
		&recordingStep{name: "third", executeErr: stepErr, trace: &trace},
	}

	o := NewOrchestrator("order-1", steps, nil)
	err := o.Execute(context.Background())
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, stepErr) {
		t.Errorf("expected original step error in chain, got %v", err)
	}

	want := []string{
		"execute:first",
		"execute:second",
		"execute:third",
		"compensate:second",
		"compensate:first",
	}
	assertTrace(t, trace, want)

	if o.State() != StateFailed {
		t.Errorf("expected state %q, got %q", StateFailed, o.State())
	}
}

func TestOrchestratorFirstStepFailureCompensatesNothing(t *testing.T) {
	var trace []string
	steps := []Step{
		&recordingStep{name: "first", executeErr: errors.New("no stock"), trace: &trace},
		&recordingStep{name: "second", trace: &trace},
	}

	o := NewOrchestrator("order-1", steps, nil)
	if err := o.Execute(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	assertTrace(t, trace, []string{"execute:first"})
}

func TestOrchestratorCompensationFailureDoesNotAbortLoop(t *testing.T) {
	var trace []string
	steps := []Step{
		&recordingStep{name: "first", trace: &trace},
		&recordingStep{name: "second", compensateErr: errors.New("refund failed"), trace: &trace},
		&recordingStep{name: "third", executeErr: errors.New("boom"), trace: &trace},
	}

	o := NewOrchestrator("order-1", steps, nil)
	if err := o.Execute(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	// The failed compensation of "second" must not prevent "first" from
	// being compensated.
	want := []string{
		"execute:first",
		"execute:second",
		"execute:third",
		"compensate:second",
		"compensate:first",
	}
	assertTrace(t, trace, want)
}

func TestOrchestratorClearsExecutedStepsAfterCompensation(t *testing.T) {
	var trace []string
	steps := []Step{
		&recordingStep{name: "first", trace: &trace},
		&recordingStep{name: "second", executeErr: errors.New("boom"), trace: &trace},
	}

	o := NewOrchestrator("order-1", steps, nil)
	if err := o.Execute(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	if len(o.executed) != 0 {
		t.Errorf("expected executed list to be cleared, got %d entries", len(o.executed))
	}
}

func TestOrchestratorEmptyStepListSucceeds(t *testing.T) {
	o := NewOrchestrator("order-1", nil, nil)
	if err := o.Execute(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if o.State() != StateCompleted {
		t.Errorf("expected state %q, got %q", StateCompleted, o.State())
	}
}

func TestOrchestratorErrorNamesFailedStep(t *testing.T) {
	steps := []Step{
		NewStep("ChargeCard", func(ctx context.Context) error {
			return errors.New("declined")
		}, nil),
	}

	o := NewOrchestrator("order-42", steps, nil)
	err := o.Execute(context.Background())
	if err == nil {
		t.Fatal("expected failure")
	}

	want := "saga for order order-42 failed at step ChargeCard: declined"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestNewStepNilActionsSucceed(t *testing.T) {
	step := NewStep("noop", nil, nil)
	if err := step.Execute(context.Background()); err != nil {
		t.Errorf("expected nil execute to succeed, got %v", err)
	}
	if err := step.Compensate(context.Background()); err != nil {
		t.Errorf("expected nil compensate to succeed, got %v", err)
	}
	if step.Name() != "noop" {
		t.Errorf("expected name noop, got %q", step.Name())
	}
}

func assertTrace(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected trace %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected trace %v, got %v (diverges at %d: %s)",
				want, got, i, fmt.Sprintf("%s != %s", got[i], want[i]))
		}
	}
}
