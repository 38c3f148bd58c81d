package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIModel talks to the OpenAI Chat Completions API.
type OpenAIModel struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAIModel creates an OpenAI provider. Use NewModel for defaults.
func NewOpenAIModel(cfg ProviderConfig) *OpenAIModel {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIModel{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Complete implements Model.
func (m *OpenAIModel) Complete(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.model),
		Messages: openAIMessages(req.Entries),
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(m.maxTokens))
	}
	if len(req.Tools) > 0 {
		defs := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			defs = append(defs, openai.ChatCompletionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  shared.FunctionParameters(tool.Parameters),
					Strict:      openai.Bool(true),
				},
			})
		}
		params.Tools = defs
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %w", ErrModelRequest, err)
	}
	if len(completion.Choices) == 0 {
		return &Response{}, nil
	}

	msg := completion.Choices[0].Message
	resp := &Response{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return resp, nil
}

// openAIMessages converts the transcript. A tool turn becomes one assistant
// message carrying its text and calls, followed by one tool message per result.
func openAIMessages(entries []Entry) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for i := 0; i < len(entries); {
		e := entries[i]
		switch e.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(e.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(e.Content))
		case RoleAssistant, RoleToolCall, RoleToolResult:
			text, calls, results, next, ok := toolTurn(entries, i)
			if !ok {
				out = append(out, openAIAssistant(e.Content, nil))
				i = next
				continue
			}
			if len(calls) > 0 || text != "" {
				out = append(out, openAIAssistant(text, calls))
			}
			for _, r := range results {
				out = append(out, openai.ToolMessage(r.Content, r.CallID))
			}
			i = next
			continue
		}
		i++
	}
	return out
}

// openAIAssistant builds an assistant message. Empty text is left out when
// the message carries calls.
func openAIAssistant(text string, calls []ToolCall) openai.ChatCompletionMessageParamUnion {
	msg := openai.ChatCompletionAssistantMessageParam{Role: "assistant"}
	if text != "" || len(calls) == 0 {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text),
		}
	}
	for _, c := range calls {
		args := string(c.Arguments)
		if args == "" {
			args = "{}"
		}
		msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   c.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      c.Name,
				Arguments: args,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}
