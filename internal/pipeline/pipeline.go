package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/webterm/internal/model"
)

// Step is one stage of a Pipeline.
type Step interface {
	// Do executes the step. A returned error is recorded in the report;
	// whether later steps still run depends on the pipeline configuration.
	Do(ctx context.Context, report *model.ScanReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails.
// By default the pipeline stops at the first failure; a site that cannot be
// probed has nothing to crawl.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a Pipeline with the given steps.
func New(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{steps: steps}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// Execute runs the steps and sets report.Outcome.
//
// Cancellation is checked before each step. The outcome is OutcomeCancelled
// when the context ended, OutcomeError when a step failed, and OutcomeDone
// otherwise.
func (p *Pipeline) Execute(ctx context.Context, report *model.ScanReport) error {
	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", err)
			report.Outcome = model.OutcomeCancelled
			report.Error = err.Error()
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "url", report.RootURL)
		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "url", report.RootURL, "error", err)
			if firstErr == nil {
				firstErr = err
				report.Error = err.Error()
			}
			if !p.continueOnError {
				break
			}
		}
	}

	switch {
	case ctx.Err() != nil:
		report.Outcome = model.OutcomeCancelled
		if firstErr == nil {
			firstErr = ctx.Err()
			report.Error = firstErr.Error()
		}
	case firstErr != nil:
		report.Outcome = model.OutcomeError
	default:
		report.Outcome = model.OutcomeDone
	}
	return firstErr
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
