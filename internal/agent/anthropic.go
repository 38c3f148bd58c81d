package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicModel talks to the Anthropic Messages API.
type AnthropicModel struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicModel creates an Anthropic provider. Use NewModel for defaults.
func NewAnthropicModel(cfg ProviderConfig) *AnthropicModel {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnthropicModel{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// Complete implements Model.
func (m *AnthropicModel) Complete(ctx context.Context, req Request) (*Response, error) {
	system, messages := anthropicMessages(req.Entries)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(m.maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		defs := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			param := anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.Parameters["properties"],
				},
			}
			if required, ok := tool.Parameters["required"].([]string); ok {
				param.InputSchema.Required = required
			}
			defs = append(defs, anthropic.ToolUnionParam{OfTool: &param})
		}
		params.Tools = defs
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: %w", ErrModelRequest, err)
	}

	resp := &Response{}
	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: json.RawMessage(b.Input),
			})
		}
	}
	resp.Text = text.String()
	return resp, nil
}

// anthropicMessages converts the transcript. The system entry moves to the
// request's system field; a tool turn becomes an assistant message of its text
// and tool_use blocks followed by a user message of tool_result blocks.
func anthropicMessages(entries []Entry) (string, []anthropic.MessageParam) {
	var system string
	var out []anthropic.MessageParam
	for i := 0; i < len(entries); {
		e := entries[i]
		switch e.Role {
		case RoleSystem:
			system = e.Content
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(e.Content)))
		case RoleAssistant, RoleToolCall, RoleToolResult:
			text, calls, results, next, ok := toolTurn(entries, i)
			if !ok {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(e.Content)))
				i = next
				continue
			}
			// The API rejects empty text blocks.
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(calls)+1)
			if text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, c := range calls {
				var input map[string]any
				if err := json.Unmarshal(c.Arguments, &input); err != nil || input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    c.ID,
						Name:  c.Name,
						Input: input,
					},
				})
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: blocks,
				})
			}
			if len(results) > 0 {
				resultBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
				for _, r := range results {
					resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(r.CallID, r.Content, r.IsError))
				}
				out = append(out, anthropic.NewUserMessage(resultBlocks...))
			}
			i = next
			continue
		}
		i++
	}
	return system, out
}
