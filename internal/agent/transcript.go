package agent

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Role is the kind of a transcript entry.
type Role string

// Transcript roles.
const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolCall   Role = "tool_call"
	RoleToolResult Role = "tool_result"
)

// ToolCall is a function call emitted by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Entry is one element of the conversation.
type Entry struct {
	Role Role `json:"role"`

	// Content is the text of system, user, assistant and tool_result entries.
	Content string `json:"content,omitempty"`

	// Call is set for tool_call entries.
	Call *ToolCall `json:"call,omitempty"`

	// CallID correlates a tool_result with its tool_call.
	CallID string `json:"call_id,omitempty"`

	// IsError marks a tool_result produced from a handler error.
	IsError bool `json:"is_error,omitempty"`
}

// Transcript is the ordered conversation of one Loop.
// The system entry, if any, is always first.
type Transcript struct {
	entries []Entry
}

// NewTranscript starts a transcript. An empty system prompt adds no entry.
func NewTranscript(system string) *Transcript {
	t := &Transcript{}
	if system != "" {
		t.entries = append(t.entries, Entry{Role: RoleSystem, Content: system})
	}
	return t
}

// AppendUser adds a user message.
func (t *Transcript) AppendUser(text string) {
	t.entries = append(t.entries, Entry{Role: RoleUser, Content: text})
}

// AppendAssistant adds an assistant text turn.
func (t *Transcript) AppendAssistant(text string) {
	t.entries = append(t.entries, Entry{Role: RoleAssistant, Content: text})
}

// AppendToolTurn opens a model turn that requested tool calls. text is what
// the model said alongside the calls and may be empty. The exchanges appended
// after it, up to the next non-tool entry, belong to this turn.
func (t *Transcript) AppendToolTurn(text string) {
	t.entries = append(t.entries, Entry{Role: RoleAssistant, Content: text})
}

// AppendToolExchange adds a tool call together with its result, so the pair
// is never separated.
func (t *Transcript) AppendToolExchange(call ToolCall, output string, isError bool) {
	c := call
	c.Arguments = slices.Clone(call.Arguments)
	t.entries = append(t.entries,
		Entry{Role: RoleToolCall, Call: &c},
		Entry{Role: RoleToolResult, CallID: call.ID, Content: output, IsError: isError},
	)
}

// Entries returns a copy of the conversation.
func (t *Transcript) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Validate checks that every tool call has a result and every result
// answers an earlier call.
func (t *Transcript) Validate() error {
	return validateEntries(t.entries)
}

func validateEntries(entries []Entry) error {
	pending := make(map[string]bool)
	for i, e := range entries {
		switch e.Role {
		case RoleSystem:
			if i != 0 {
				return fmt.Errorf("system entry at position %d", i)
			}
		case RoleToolCall:
			if e.Call == nil {
				return fmt.Errorf("tool call entry at position %d has no call", i)
			}
			pending[e.Call.ID] = true
		case RoleToolResult:
			if !pending[e.CallID] {
				return fmt.Errorf("tool result %q at position %d answers no call", e.CallID, i)
			}
			delete(pending, e.CallID)
		case RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("unknown role %q at position %d", e.Role, i)
		}
	}
	for id := range pending {
		return fmt.Errorf("%w: %s", ErrUnresolvedCall, id)
	}
	return nil
}
