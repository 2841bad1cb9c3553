package gemini

import (
	"errors"
	"testing"

	"salesagent/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestConvertMessagesBundlesToolResults(t *testing.T) {
	fc := &genai.FunctionCall{ID: "c1", Name: "search_products", Args: map[string]any{"query": "wax"}}
	msgs := []llm.Message{
		llm.NewUserMessage("find wax"),
		{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{
				ID:       "c1",
				Name:     "search_products",
				Function: llm.FunctionCall{Name: "search_products", Arguments: `{"query":"wax"}`},
				Meta:     map[string]any{"gemini_function_call": fc},
			}},
		},
		llm.NewToolResultMessage([]llm.ToolResultBlock{
			{ToolCallID: "c1", ToolName: "search_products", Content: `{"status":"success","note":"[REAL DATA]"}`},
			{ToolCallID: "c2", ToolName: "get_current_inventory", Content: `not json`},
		}),
	}

	out := convertMessages(msgs)
	require.Len(t, out, 3)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "model", out[1].Role)
	assert.Same(t, fc, out[1].Parts[0].FunctionCall)

	require.Len(t, out[2].Parts, 2)
	assert.Equal(t, "user", out[2].Role)
	assert.Equal(t, "[REAL DATA]", out[2].Parts[0].FunctionResponse.Response["note"])
	assert.Equal(t, map[string]any{"result": "not json"}, out[2].Parts[1].FunctionResponse.Response)
}

func TestConvertMessagesRebuildsCallsWithoutMeta(t *testing.T) {
	out := convertMessages([]llm.Message{{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "x", Function: llm.FunctionCall{Name: "get_current_inventory", Arguments: `{"product_name":"Wax"}`}}},
	}})
	require.Len(t, out, 1)
	call := out[0].Parts[0].FunctionCall
	assert.Equal(t, "get_current_inventory", call.Name)
	assert.Equal(t, "Wax", call.Args["product_name"])
}

func TestNormalizeStopReason(t *testing.T) {
	assert.Equal(t, llm.StopReasonToolUse, normalizeStopReason(genai.FinishReasonStop, true))
	assert.Equal(t, llm.StopReasonEndTurn, normalizeStopReason(genai.FinishReasonStop, false))
	assert.Equal(t, llm.StopReasonLength, normalizeStopReason(genai.FinishReasonMaxTokens, false))
	assert.Equal(t, "safety", normalizeStopReason(genai.FinishReasonSafety, false))
	assert.Equal(t, "", normalizeStopReason("", false))
}

func TestIsTransientError(t *testing.T) {
	g := &GeminiClient{}
	assert.True(t, g.IsTransientError(errors.New("Error 503, model overloaded")))
	assert.True(t, g.IsTransientError(errors.New("429 RESOURCE_EXHAUSTED")))
	assert.False(t, g.IsTransientError(errors.New("400 invalid argument")))
	assert.False(t, g.IsTransientError(nil))
}
