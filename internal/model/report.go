package model

import "time"

// Outcome is the terminal state of one mapping task.
type Outcome string

const (
	// OutcomeDone means the model produced a final answer.
	OutcomeDone Outcome = "done"
	// OutcomeBudgetExhausted means the task stopped at the tool-call limit.
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	// OutcomeCancelled means the caller cancelled the task.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeError means the task failed, usually because the model request failed.
	OutcomeError Outcome = "error"
)

// ScanReport is the outcome of one mapping task.
type ScanReport struct {
	// ID identifies the task. It doubles as the snapshot ID in the database.
	ID string `json:"id"`

	// RootURL is the URL key the task was started with.
	RootURL string `json:"root_url"`

	// StartedAt and FinishedAt bracket the task.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Outcome is the terminal state.
	Outcome Outcome `json:"outcome"`

	// ToolCalls is the number of tool calls executed.
	ToolCalls int `json:"tool_calls"`

	// FinalText is the last assistant message, or the budget fallback message.
	FinalText string `json:"final_text,omitempty"`

	// Error is the failure or cancellation cause, empty for finished tasks.
	Error string `json:"error,omitempty"`

	// Tree is the site tree at the end of the task. May be nil.
	Tree *SiteTree `json:"tree,omitempty"`
}

// Duration returns how long the task ran.
func (r *ScanReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DescribedPages returns the number of tree nodes that have a description.
func (r *ScanReport) DescribedPages() int {
	if r.Tree == nil {
		return 0
	}
	n := 0
	for _, url := range r.Tree.URLs() {
		if node, ok := r.Tree.Node(url); ok && node.Description != "" {
			n++
		}
	}
	return n
}
