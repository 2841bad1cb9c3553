package openailm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"salesagent/pkg/llm"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// Client is a wrapper around the official OpenAI Go SDK
type Client struct {
	client       *openai.Client
	provider     string
	model        string
	debugEnabled bool
	bufferSize   int
	options      map[string]any
}

// NewClient creates a new OpenAI client
func NewClient(provider string, apiKey string, model string, baseURL string, options map[string]any) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)

	return &Client{
		client:     &client,
		provider:   provider,
		model:      model,
		bufferSize: 100,
		options:    options,
	}, nil
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) SetDebug(enabled bool) {
	c.debugEnabled = enabled
}

// SetBufferSize sets the capacity of the returned chunk channel.
func (c *Client) SetBufferSize(n int) {
	if n > 0 {
		c.bufferSize = n
	}
}

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	// Transient: network-level issues
	if strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") {
		return true
	}

	// Transient: server-side temporary failures
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "500 internal") ||
		strings.Contains(msg, "502 bad gateway") ||
		strings.Contains(msg, "503 service unavailable") ||
		strings.Contains(msg, "overloaded") {
		return true
	}

	// Everything else (400 Bad Request, 401 Unauthorized, etc.) is non-transient
	return false
}

func (c *Client) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	chunkCh := make(chan llm.StreamChunk, c.bufferSize)

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: convertMessages(req.Messages),
		},
	}

	if req.System != "" {
		params.Instructions = openai.String(req.System)
	}

	opts := []option.RequestOption{}

	// Handle unified "thinking_effort" option
	if effortStr, ok := c.options["thinking_effort"].(string); ok && effortStr != "" && effortStr != "off" {
		var effort shared.ReasoningEffort
		switch effortStr {
		case "low":
			effort = shared.ReasoningEffortLow
		case "high":
			effort = shared.ReasoningEffortHigh
		default:
			effort = shared.ReasoningEffortMedium
		}

		params.Reasoning = shared.ReasoningParam{
			Effort: effort,
		}
	}

	if t, ok := c.options["temperature"].(float64); ok {
		opts = append(opts, option.WithJSONSet("temperature", t))
	}

	if maxTok, ok := c.options["max_tokens"].(float64); ok {
		opts = append(opts, option.WithJSONSet("max_output_tokens", int(maxTok)))
	}

	if tools := convertTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	go func() {
		defer close(chunkCh)

		stream := c.client.Responses.NewStreaming(ctx, params, opts...)
		defer stream.Close()

		var lastFinishReason string
		var lastUsage *llm.LLMUsage

		debugger := llm.NewStreamDebugger(ctx, c.provider, c.debugEnabled)
		defer debugger.Close()

		var thinkingLogBuffer strings.Builder

		// Calls are keyed by output item id; order keeps emission order.
		toolCalls := make(map[string]*llm.ToolCall)
		var order []string
		callFor := func(itemID string) *llm.ToolCall {
			tc, ok := toolCalls[itemID]
			if !ok {
				tc = &llm.ToolCall{ID: itemID}
				toolCalls[itemID] = tc
				order = append(order, itemID)
			}
			return tc
		}

		for stream.Next() {
			event := stream.Current()

			if raw := event.RawJSON(); raw != "" {
				debugger.WriteString(raw)
			}

			switch variant := event.AsAny().(type) {
			case responses.ResponseTextDeltaEvent:
				chunkCh <- llm.NewTextChunk(variant.Delta)

			case responses.ResponseReasoningTextDeltaEvent:
				thinkingLogBuffer.WriteString(variant.Delta)
				chunkCh <- llm.NewThinkingChunk(variant.Delta)

			case responses.ResponseReasoningSummaryTextDeltaEvent:
				thinkingLogBuffer.WriteString(variant.Delta)
				chunkCh <- llm.NewThinkingChunk(variant.Delta)

			case responses.ResponseOutputItemAddedEvent:
				if variant.Item.Type == "function_call" {
					tc := callFor(variant.Item.ID)
					if variant.Item.CallID != "" {
						tc.ID = variant.Item.CallID
					}
					if variant.Item.Name != "" {
						tc.Name = variant.Item.Name
						tc.Function.Name = variant.Item.Name
					}
				}

			case responses.ResponseFunctionCallArgumentsDeltaEvent:
				tc := callFor(variant.ItemID)
				tc.Function.Arguments += variant.Delta

			case responses.ResponseFunctionCallArgumentsDoneEvent:
				tc := callFor(variant.ItemID)
				if variant.Arguments != "" {
					tc.Function.Arguments = variant.Arguments
				}

			case responses.ResponseOutputItemDoneEvent:
				// Name and call id may only be complete here
				if variant.Item.Type == "function_call" {
					tc := callFor(variant.Item.ID)
					if variant.Item.CallID != "" {
						tc.ID = variant.Item.CallID
					}
					if variant.Item.Name != "" {
						tc.Name = variant.Item.Name
						tc.Function.Name = variant.Item.Name
					}
				}

			case responses.ResponseCompletedEvent:
				lastFinishReason = llm.StopReasonEndTurn
				lastUsage = convertUsage(variant.Response.Usage)

			case responses.ResponseIncompleteEvent:
				lastFinishReason = llm.StopReasonLength
				lastUsage = convertUsage(variant.Response.Usage)

			case responses.ResponseFailedEvent:
				msg := "API Response Failed"
				if variant.Response.Error.Message != "" {
					msg = fmt.Sprintf("API Response Failed: %s", variant.Response.Error.Message)
				}
				chunkCh <- llm.NewErrorChunk(msg, fmt.Errorf("%s", msg), true)
				return

			case responses.ResponseErrorEvent:
				msg := fmt.Sprintf("API Error: %s", variant.Message)
				chunkCh <- llm.NewErrorChunk(msg, fmt.Errorf("%s", msg), true)
				return
			}
		}

		if thinkingLogBuffer.Len() > 0 {
			slog.Debug("Captured full thinking process", "provider", c.provider, "content", thinkingLogBuffer.String())
		}

		if err := stream.Err(); err != nil {
			chunkCh <- llm.NewErrorChunk(fmt.Sprintf("Stream error: %v", err), err, true)
			return
		}

		if len(order) > 0 {
			calls := make([]llm.ToolCall, 0, len(order))
			for _, id := range order {
				calls = append(calls, *toolCalls[id])
			}
			chunkCh <- llm.StreamChunk{ToolCalls: calls}
			lastFinishReason = llm.StopReasonToolUse
		}

		llm.LogUsage(c.model, lastUsage)
		chunkCh <- llm.NewFinalChunk(lastFinishReason, lastUsage)
	}()

	return chunkCh, nil
}

func convertUsage(u responses.ResponseUsage) *llm.LLMUsage {
	if u.TotalTokens == 0 {
		return nil
	}
	return &llm.LLMUsage{
		PromptTokens:     int(u.InputTokens),
		CompletionTokens: int(u.OutputTokens),
		TotalTokens:      int(u.TotalTokens),
		ThoughtsTokens:   int(u.OutputTokensDetails.ReasoningTokens),
		CachedTokens:     int(u.InputTokensDetails.CachedTokens),
	}
}

func convertMessages(messages []llm.Message) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(
				m.GetTextContent(),
				responses.EasyInputMessageRoleSystem,
			))
		case llm.RoleUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(
				m.GetTextContent(),
				responses.EasyInputMessageRoleUser,
			))
		case llm.RoleAssistant:
			if text := m.GetTextContent(); text != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(
					text,
					responses.EasyInputMessageRoleAssistant,
				))
			}
			for _, tc := range m.ToolCalls {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(
					tc.Function.Arguments,
					tc.ID,
					tc.Name,
				))
			}
		case llm.RoleTool:
			for _, r := range m.ToolResults {
				items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(
					r.ToolCallID,
					r.Content,
				))
			}
		}
	}

	return items
}

func convertTools(specs []llm.ToolSpec) []responses.ToolUnionParam {
	var tools []responses.ToolUnionParam
	for _, s := range specs {
		tools = append(tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  s.Parameters,
			},
		})
	}
	return tools
}
