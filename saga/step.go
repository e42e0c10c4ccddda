package saga

import "context"

// Step is a named unit of work in a saga. Execute performs the forward
// action and may fail; Compensate is the best-effort undo invoked by the
// orchestrator when a later step fails.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// funcStep adapts a pair of closures into a Step, mainly for tests
type funcStep struct {
	name       string
	execute    func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// NewStep builds a Step from closures. A nil execute or compensate is
// treated as an immediate success.
func NewStep(name string, execute, compensate func(ctx context.Context) error) Step {
	return &funcStep{name: name, execute: execute, compensate: compensate}
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Execute(ctx context.Context) error {
	if s.execute == nil {
		return nil
	}
	return s.execute(ctx)
}

func (s *funcStep) Compensate(ctx context.Context) error {
	if s.compensate == nil {
		return nil
	}
	return s.compensate(ctx)
}
