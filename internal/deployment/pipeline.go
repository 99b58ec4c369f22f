// Package deployment implements fdep's tasks: the full deploy pipeline and
// the individual operations it is made of.
package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fdep/internal/console"
)

// Step is one unit of a pipeline.
type Step interface {
	Name() string
	Run(ctx context.Context) error
}

type stepFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (s *stepFunc) Name() string                  { return s.name }
func (s *stepFunc) Run(ctx context.Context) error { return s.fn(ctx) }

// NewStep adapts a function to a Step.
func NewStep(name string, fn func(ctx context.Context) error) Step {
	return &stepFunc{name: name, fn: fn}
}

type bestEffort struct {
	Step
}

// BestEffort marks a step whose failure is logged and skipped.
func BestEffort(s Step) Step {
	return bestEffort{Step: s}
}

func isBestEffort(s Step) bool {
	_, ok := s.(bestEffort)
	return ok
}

// Pipeline runs steps in order and stops at the first failure.
type Pipeline struct {
	steps   []Step
	logger  *slog.Logger
	console *console.Console
}

// NewPipeline creates an empty pipeline.
func NewPipeline(logger *slog.Logger, c *console.Console) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger, console: c}
}

// Add appends steps.
func (p *Pipeline) Add(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Names returns the step names in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run executes every step. A best-effort step that fails is reported and
// the pipeline continues.
func (p *Pipeline) Run(ctx context.Context) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled before step %s: %w", step.Name(), ctx.Err())
		default:
		}

		start := time.Now()
		p.logger.Debug("step started", "step", step.Name())

		if err := step.Run(ctx); err != nil {
			if isBestEffort(step) {
				p.logger.Warn("step failed (non-fatal)", "step", step.Name(), "error", err)
				if p.console != nil {
					p.console.Warn("Warning: %s failed: %v", step.Name(), err)
				}
				continue
			}
			p.logger.Error("step failed", "step", step.Name(), "error", err, "duration", time.Since(start))
			return fmt.Errorf("step %s: %w", step.Name(), err)
		}

		p.logger.Info("step finished", "step", step.Name(), "duration", time.Since(start))
	}
	return nil
}
