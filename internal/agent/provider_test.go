package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/webterm/internal/tools"
)

// exchangeEntries is a conversation with one finished tool round.
func exchangeEntries() []Entry {
	tr := NewTranscript("sys")
	tr.AppendUser("map a.com")
	tr.AppendToolExchange(ToolCall{ID: "call_1", Name: "pageScanner", Arguments: json.RawMessage(`{"url":"a.com","timeout":null}`)}, `{"content":"","buttons":[]}`, false)
	tr.AppendToolExchange(ToolCall{ID: "call_2", Name: "missing"}, "[Tool error: nope]", true)
	return tr.Entries()
}

// captureServer answers every request with body and stores the decoded request.
func captureServer(t *testing.T, pathSuffix, body string, got *map[string]any) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, pathSuffix) {
			http.NotFound(w, r)
			return
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal(raw, got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func messageRoles(t *testing.T, req map[string]any) []string {
	t.Helper()

	msgs, ok := req["messages"].([]any)
	if !ok {
		t.Fatalf("request has no messages: %v", req)
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.(map[string]any)["role"].(string))
	}
	return out
}

// TestOpenAIModel tests the Chat Completions adapter against a fake server.
func TestOpenAIModel(t *testing.T) {
	t.Parallel()

	const body = `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 0,
		"model": "gpt-test",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": null,
				"tool_calls": [{
					"id": "call_9",
					"type": "function",
					"function": {"name": "sitePropagator", "arguments": "{\"url\":\"https://a.com\"}"}
				}]
			}
		}]
	}`

	var req map[string]any
	ts := captureServer(t, "/chat/completions", body, &req)

	m, err := NewModel(ProviderConfig{
		Provider: "OpenAI",
		Model:    "gpt-test",
		APIKey:   "sk-test",
		BaseURL:  ts.URL + "/",
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	resp, err := m.Complete(context.Background(), Request{
		Entries: exchangeEntries(),
		Tools:   tools.NewDefaultRegistry(tools.Options{}).Definitions(),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_9" || call.Name != "sitePropagator" || string(call.Arguments) != `{"url":"https://a.com"}` {
		t.Errorf("call = %+v", call)
	}

	if req["model"] != "gpt-test" {
		t.Errorf("model = %v", req["model"])
	}
	// system, user, one assistant turn with both calls, two tool messages
	want := "system,user,assistant,tool,tool"
	if got := strings.Join(messageRoles(t, req), ","); got != want {
		t.Errorf("roles = %s, want %s", got, want)
	}
	assistant := req["messages"].([]any)[2].(map[string]any)
	if calls := assistant["tool_calls"].([]any); len(calls) != 2 {
		t.Errorf("assistant tool_calls = %v", calls)
	}
	if defs := req["tools"].([]any); len(defs) != 4 {
		t.Errorf("tools = %d, want 4", len(defs))
	}
}

// TestAnthropicModel tests the Messages adapter against a fake server.
func TestAnthropicModel(t *testing.T) {
	t.Parallel()

	const body = `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": [
			{"type": "text", "text": "Scanning "},
			{"type": "text", "text": "now."},
			{"type": "tool_use", "id": "toolu_1", "name": "pageScanner", "input": {"url": "https://a.com"}}
		],
		"stop_reason": "tool_use",
		"stop_sequence": null,
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`

	var req map[string]any
	ts := captureServer(t, "/messages", body, &req)

	m, err := NewModel(ProviderConfig{
		Provider: ProviderAnthropic,
		Model:    "claude-test",
		APIKey:   "sk-ant-test",
		BaseURL:  ts.URL + "/",
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	resp, err := m.Complete(context.Background(), Request{
		Entries: exchangeEntries(),
		Tools:   tools.NewDefaultRegistry(tools.Options{}).Definitions(),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Text != "Scanning now." {
		t.Errorf("text = %q", resp.Text)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "toolu_1" {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	var args map[string]string
	if err := json.Unmarshal(resp.ToolCalls[0].Arguments, &args); err != nil || args["url"] != "https://a.com" {
		t.Errorf("arguments = %s (%v)", resp.ToolCalls[0].Arguments, err)
	}

	// The system prompt moves out of the message list; results travel as
	// one user message.
	want := "user,assistant,user"
	if got := strings.Join(messageRoles(t, req), ","); got != want {
		t.Errorf("roles = %s, want %s", got, want)
	}
	if !strings.Contains(mustJSON(t, req["system"]), "sys") {
		t.Errorf("system = %v", req["system"])
	}
	results := req["messages"].([]any)[2].(map[string]any)["content"].([]any)
	if len(results) != 2 {
		t.Fatalf("tool results = %v", results)
	}
	if second := results[1].(map[string]any); second["is_error"] != true {
		t.Errorf("error result = %v", second)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

// TestModelRequestError tests that provider failures wrap ErrModelRequest.
func TestModelRequestError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(ts.Close)

	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic} {
		t.Run(provider, func(t *testing.T) {
			t.Parallel()

			m, err := NewModel(ProviderConfig{Provider: provider, APIKey: "k", BaseURL: ts.URL + "/"})
			if err != nil {
				t.Fatalf("NewModel: %v", err)
			}
			_, err = m.Complete(context.Background(), Request{Entries: []Entry{{Role: RoleUser, Content: "hi"}}})
			if !errors.Is(err, ErrModelRequest) {
				t.Errorf("expected ErrModelRequest, got %v", err)
			}
		})
	}
}

// TestNewModel tests provider selection.
func TestNewModel(t *testing.T) {
	t.Parallel()

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		if _, err := NewModel(ProviderConfig{Provider: ProviderOpenAI}); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("unsupported provider", func(t *testing.T) {
		t.Parallel()

		_, err := NewModel(ProviderConfig{Provider: "gemini", APIKey: "k"})
		var unsupported ErrUnsupportedProvider
		if !errors.As(err, &unsupported) || unsupported.Provider != "gemini" {
			t.Errorf("expected ErrUnsupportedProvider, got %v", err)
		}
		if err.Error() != "unsupported LLM provider: gemini" {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		m, err := NewModel(ProviderConfig{APIKey: "k"})
		if err != nil {
			t.Fatalf("NewModel: %v", err)
		}
		oai, ok := m.(*OpenAIModel)
		if !ok {
			t.Fatalf("got %T, want *OpenAIModel", m)
		}
		if oai.model != DefaultOpenAIModel || oai.maxTokens != DefaultMaxTokens {
			t.Errorf("model = %q, maxTokens = %d", oai.model, oai.maxTokens)
		}

		m, err = NewModel(ProviderConfig{Provider: ProviderAnthropic, APIKey: "k"})
		if err != nil {
			t.Fatalf("NewModel: %v", err)
		}
		if a, ok := m.(*AnthropicModel); !ok || a.model != DefaultAnthropicModel {
			t.Errorf("got %#v", m)
		}
	})
}

// roundEntries is a conversation with two tool rounds, the first of which
// came with text.
func roundEntries() []Entry {
	tr := NewTranscript("sys")
	tr.AppendUser("map a.com")
	tr.AppendToolTurn("Crawling first.")
	tr.AppendToolExchange(ToolCall{ID: "call_1", Name: "sitePropagator", Arguments: json.RawMessage(`{"url":"a.com"}`)}, "https://a.com/", false)
	tr.AppendToolTurn("")
	tr.AppendToolExchange(ToolCall{ID: "call_2", Name: "setPageDescription", Arguments: json.RawMessage(`{"url":"a.com","description":"home"}`)}, "ok", false)
	tr.AppendAssistant("Mapped.")
	tr.AppendUser("anything else?")
	return tr.Entries()
}

// TestProviderRounds tests that each tool round is replayed as its own turn.
func TestProviderRounds(t *testing.T) {
	t.Parallel()

	t.Run("openai", func(t *testing.T) {
		t.Parallel()

		const body = `{"id":"c","object":"chat.completion","created":0,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`
		var req map[string]any
		ts := captureServer(t, "/chat/completions", body, &req)

		m, err := NewModel(ProviderConfig{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: ts.URL + "/"})
		if err != nil {
			t.Fatalf("NewModel: %v", err)
		}
		if _, err := m.Complete(context.Background(), Request{Entries: roundEntries()}); err != nil {
			t.Fatalf("Complete: %v", err)
		}

		want := "system,user,assistant,tool,assistant,tool,assistant,user"
		if got := strings.Join(messageRoles(t, req), ","); got != want {
			t.Fatalf("roles = %s, want %s", got, want)
		}
		msgs := req["messages"].([]any)
		first := msgs[2].(map[string]any)
		if first["content"] != "Crawling first." {
			t.Errorf("first turn content = %v", first["content"])
		}
		for _, i := range []int{2, 4} {
			calls, _ := msgs[i].(map[string]any)["tool_calls"].([]any)
			if len(calls) != 1 {
				t.Errorf("message %d tool_calls = %v", i, calls)
			}
		}
	})

	t.Run("anthropic", func(t *testing.T) {
		t.Parallel()

		const body = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn","stop_sequence":null,
			"usage":{"input_tokens":1,"output_tokens":1}}`
		var req map[string]any
		ts := captureServer(t, "/messages", body, &req)

		m, err := NewModel(ProviderConfig{Provider: ProviderAnthropic, APIKey: "sk-ant-test", BaseURL: ts.URL + "/"})
		if err != nil {
			t.Fatalf("NewModel: %v", err)
		}
		if _, err := m.Complete(context.Background(), Request{Entries: roundEntries()}); err != nil {
			t.Fatalf("Complete: %v", err)
		}

		want := "user,assistant,user,assistant,user,assistant,user"
		if got := strings.Join(messageRoles(t, req), ","); got != want {
			t.Fatalf("roles = %s, want %s", got, want)
		}
		msgs := req["messages"].([]any)
		blockTypes := func(i int) []string {
			var types []string
			for _, b := range msgs[i].(map[string]any)["content"].([]any) {
				types = append(types, b.(map[string]any)["type"].(string))
			}
			return types
		}
		if got := strings.Join(blockTypes(1), ","); got != "text,tool_use" {
			t.Errorf("first turn blocks = %s", got)
		}
		if got := strings.Join(blockTypes(3), ","); got != "tool_use" {
			t.Errorf("second turn blocks = %s", got)
		}
	})
}
