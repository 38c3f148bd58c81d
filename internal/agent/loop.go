package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/webterm/internal/model"
	"github.com/nao1215/webterm/internal/tools"
)

// State is the phase of a Loop.
type State string

// Loop states.
const (
	StateIdle            State = "idle"
	StateAwaitingModel   State = "awaiting_model"
	StateExecutingTools  State = "executing_tools"
	StateDone            State = "done"
	StateBudgetExhausted State = "budget_exhausted"
	StateCancelled       State = "cancelled"
	StateFailed          State = "failed"
)

// Fixed replies.
const (
	// NoResponseText replaces an empty final model turn.
	NoResponseText = "No response from model."

	// BudgetExhaustedText ends a run that stopped executing tool calls.
	BudgetExhaustedText = "Stopped after reaching tool-call limits."
)

// Loop defaults.
const (
	// DefaultToolCallBudget is the tool-call budget used by callers that have no setting.
	DefaultToolCallBudget = 5

	// DefaultRequestTimeout bounds one model round trip.
	DefaultRequestTimeout = 2 * time.Minute
)

// DefaultSystemPrompt returns the system prompt used when none is configured.
func DefaultSystemPrompt(now time.Time) string {
	return fmt.Sprintf("The current time is %s. You are a helpful assistant.", now.Format(time.RFC3339))
}

// TreeObserver receives a copy of the working tree after every tool call
// that ran while a tree was present.
type TreeObserver func(tree *model.SiteTree)

// Loop is one conversation between a model and the tools catalog.
// It keeps its transcript and working tree across Run calls.
// A Loop is not safe for concurrent use.
type Loop struct {
	model          Model
	registry       *tools.Registry
	transcript     *Transcript
	tree           *model.SiteTree
	state          State
	executed       int
	systemPrompt   string
	requestTimeout time.Duration
	logger         *slog.Logger
	observer       TreeObserver
}

// Option configures a Loop.
type Option func(*Loop)

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(l *Loop) {
		l.systemPrompt = prompt
	}
}

// WithRequestTimeout bounds every model round trip.
func WithRequestTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.requestTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTree sets the initial working tree.
func WithTree(tree *model.SiteTree) Option {
	return func(l *Loop) {
		l.tree = tree
	}
}

// WithTreeObserver registers a callback for working tree updates.
func WithTreeObserver(fn TreeObserver) Option {
	return func(l *Loop) {
		l.observer = fn
	}
}

// NewLoop creates a Loop. A nil registry offers the model no tools.
func NewLoop(m Model, registry *tools.Registry, opts ...Option) *Loop {
	l := &Loop{
		model:          m,
		registry:       registry,
		state:          StateIdle,
		systemPrompt:   DefaultSystemPrompt(time.Now()),
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.transcript = NewTranscript(l.systemPrompt)
	return l
}

// Run answers one user message, executing at most budget tool calls.
//
// The returned text is the model's final answer, NoResponseText when that
// answer was empty, or BudgetExhaustedText when the run stopped because no
// further call could be executed or the round-trip ceiling was reached.
// An empty message returns "" without contacting the model.
//
// Model failures and cancellation are returned as errors. The transcript
// stays valid in both cases: every recorded call has its result.
func (l *Loop) Run(ctx context.Context, message string, budget int) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", nil
	}
	budget = max(0, budget)
	maxRounds := max(1, budget*3+2)

	l.transcript.AppendUser(message)
	var defs []tools.Definition
	if l.registry != nil {
		defs = l.registry.Definitions()
	}

	for round := 0; round < maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			l.state = StateCancelled
			return "", err
		}

		l.state = StateAwaitingModel
		resp, err := l.complete(ctx, defs)
		if err != nil {
			if ctx.Err() != nil {
				l.state = StateCancelled
				return "", ctx.Err()
			}
			l.state = StateFailed
			return "", err
		}
		l.logger.Debug("model turn",
			"round", round+1,
			"tool_calls", len(resp.ToolCalls),
			"budget", budget,
		)

		if len(resp.ToolCalls) == 0 {
			text := resp.Text
			if text == "" {
				text = NoResponseText
			}
			l.transcript.AppendAssistant(text)
			l.state = StateDone
			return text, nil
		}

		l.state = StateExecutingTools
		processed := 0
		for _, call := range resp.ToolCalls {
			if budget <= 0 {
				break
			}
			if err := ctx.Err(); err != nil {
				l.state = StateCancelled
				return "", err
			}
			if processed == 0 {
				l.transcript.AppendToolTurn(resp.Text)
			}
			l.execute(ctx, call)
			processed++
			budget--
		}
		if processed == 0 {
			break
		}
	}

	l.logger.Info("tool-call budget exhausted", "executed", l.executed)
	l.transcript.AppendAssistant(BudgetExhaustedText)
	l.state = StateBudgetExhausted
	return BudgetExhaustedText, nil
}

// complete performs one bounded model round trip.
func (l *Loop) complete(ctx context.Context, defs []tools.Definition) (*Response, error) {
	if err := l.transcript.Validate(); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, l.requestTimeout)
	defer cancel()

	resp, err := l.model.Complete(reqCtx, Request{
		Entries: l.transcript.Entries(),
		Tools:   defs,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no answer within %s", ErrModelRequest, l.requestTimeout)
		}
		return nil, err
	}
	if resp == nil {
		resp = &Response{}
	}
	return resp, nil
}

// execute runs one call and records the exchange.
func (l *Loop) execute(ctx context.Context, call ToolCall) {
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}

	output, isError := l.invoke(ctx, call)
	l.transcript.AppendToolExchange(call, output, isError)
	l.executed++

	if isError {
		l.logger.Warn("tool call failed", "tool", call.Name, "id", call.ID, "error", output)
	} else {
		l.logger.Info("tool call", "tool", call.Name, "id", call.ID, "output_bytes", len(output))
	}
	if l.observer != nil && l.tree != nil {
		l.observer(l.tree.Clone())
	}
}

// invoke dispatches a call, injecting and adopting the working tree.
// A returned tree is adopted even when the call failed, so a crawl cut
// short by cancellation keeps what it found. Errors are turned into result
// text for the model.
func (l *Loop) invoke(ctx context.Context, call ToolCall) (string, bool) {
	if l.registry == nil {
		return toolErrorText(fmt.Errorf("%w: %q", tools.ErrToolNotFound, call.Name)), true
	}

	result, err := l.registry.Invoke(ctx, tools.Call{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
		Tree:      l.tree,
	})
	if result.Tree != nil {
		l.tree = result.Tree
	}
	if err != nil {
		return toolErrorText(err), true
	}
	return result.Output, false
}

func toolErrorText(err error) string {
	return fmt.Sprintf("[Tool error: %v]", err)
}

// Tree returns the working tree, or nil before any crawl.
func (l *Loop) Tree() *model.SiteTree {
	return l.tree
}

// State returns the current phase.
func (l *Loop) State() State {
	return l.state
}

// Transcript returns a copy of the conversation.
func (l *Loop) Transcript() []Entry {
	return l.transcript.Entries()
}

// ToolCallsExecuted returns the number of tool calls run across all Run calls.
func (l *Loop) ToolCallsExecuted() int {
	return l.executed
}
