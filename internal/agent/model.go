package agent

import (
	"context"

	"github.com/nao1215/webterm/internal/tools"
)

// Request is one model round trip.
type Request struct {
	// Entries is the full conversation so far.
	Entries []Entry

	// Tools is the catalog the model may call.
	Tools []tools.Definition
}

// Response is the model's turn: either text, or tool calls (possibly with text).
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Model is a language model provider.
type Model interface {
	// Complete requests the next model turn for the conversation.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// toolTurn reads the model turn that starts at entries[i]: an assistant
// entry followed by the tool exchanges of its round, or a bare run of tool
// exchanges. ok is false when entries[i] is a plain assistant text turn.
// Providers send a turn as one assistant message carrying the text and calls,
// followed by the results.
func toolTurn(entries []Entry, i int) (text string, calls []ToolCall, results []Entry, next int, ok bool) {
	start := i
	if entries[i].Role == RoleAssistant {
		if i+1 >= len(entries) || entries[i+1].Role != RoleToolCall {
			return "", nil, nil, i + 1, false
		}
		text = entries[i].Content
		start = i + 1
	}
	calls, results, next = toolRun(entries, start)
	return text, calls, results, next, true
}

// toolRun collects the tool exchange starting at entries[start]: all
// consecutive tool_call and tool_result entries. It returns the calls, the
// results and the index of the first entry after the run.
func toolRun(entries []Entry, start int) ([]ToolCall, []Entry, int) {
	var calls []ToolCall
	var results []Entry
	i := start
	for ; i < len(entries); i++ {
		e := entries[i]
		switch e.Role {
		case RoleToolCall:
			if e.Call != nil {
				calls = append(calls, *e.Call)
			}
		case RoleToolResult:
			results = append(results, e)
		default:
			return calls, results, i
		}
	}
	return calls, results, i
}
