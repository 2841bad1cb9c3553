package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"salesagent/pkg/catalog"
	"salesagent/pkg/config"
	"salesagent/pkg/inventory"
	"salesagent/pkg/llm"
	"salesagent/pkg/retrieval"
	"salesagent/pkg/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM replays one scripted turn per call and records every request.
type fakeLLM struct {
	mu       sync.Mutex
	turns    [][]llm.StreamChunk
	repeat   []llm.StreamChunk
	openErr  error
	requests []llm.ChatRequest
}

func (f *fakeLLM) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.openErr != nil {
		return nil, f.openErr
	}

	chunks := f.repeat
	if len(f.turns) > 0 {
		chunks = f.turns[0]
		f.turns = f.turns[1:]
	}
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) IsTransientError(err error) bool { return false }

func textTurn(text string) []llm.StreamChunk {
	return []llm.StreamChunk{llm.NewTextChunk(text), llm.NewFinalChunk(llm.StopReasonEndTurn, nil)}
}

func toolTurn(calls ...llm.ToolCall) []llm.StreamChunk {
	return []llm.StreamChunk{{ToolCalls: calls}, llm.NewFinalChunk(llm.StopReasonToolUse, nil)}
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Function: llm.FunctionCall{Name: name, Arguments: args}}
}

type stubInventory struct {
	err error
}

func (s stubInventory) Lookup(ctx context.Context, name string) (inventory.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return inventory.Record{"product": name, "stock": float64(3)}, nil
}

type downStore struct{}

func (downStore) List(ctx context.Context) ([]catalog.Entry, error) {
	return nil, errors.New("dial tcp 10.0.0.1:443: i/o timeout")
}
func (downStore) Close() error { return nil }

func newRegistry(t *testing.T, store catalog.Store, inv inventory.Adapter) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	search := retrieval.NewEngine(store, retrieval.NewHashEmbedder(16))
	require.NoError(t, r.Register(tools.NewSearchTool(search), tools.NewInventoryTool(inv)))
	return r
}

func liveStore() catalog.Store {
	return catalog.NewStaticStore([]catalog.Entry{
		{ID: "p1", Attributes: map[string]any{"name": "Ceramic Wax"}, Embedding: []float32{1, 0, 1}},
	})
}

func sysConfig(maxIter int) *config.SystemConfig {
	sys := config.DefaultSystemConfig()
	sys.MaxIterations = maxIter
	return sys
}

func countTag(trace []TraceEntry, tag Tag, prefix string) int {
	n := 0
	for _, e := range trace {
		if e.Tag == tag && strings.HasPrefix(e.Message, prefix) {
			n++
		}
	}
	return n
}

func TestRunEndTurnOnFirstCall(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{textTurn("Try the Ceramic Wax.")}}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(10))

	res, err := engine.Run(context.Background(), "What wax do you have?")
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "Try the Ceramic Wax.", res.FinalText)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, countTag(res.Trace, TagInfo, "Loop "))
	assert.Zero(t, countTag(res.Trace, TagToolCall, ""))
	assert.Equal(t, "finished", res.Trace[len(res.Trace)-1].Message)
	assert.NotEmpty(t, res.RunID)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, config.DefaultSystemPrompt, req.System)
	require.Len(t, req.Tools, 2)
	assert.Equal(t, "search_products", req.Tools[0].Name)
	assert.Equal(t, "get_current_inventory", req.Tools[1].Name)
}

func TestRunWithoutTextReturnsFallback(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{{llm.NewFinalChunk(llm.StopReasonEndTurn, nil)}}}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(10))

	res, err := engine.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, FallbackNoResponse, res.FinalText)
}

func TestRunToolTurnYieldsOneResultPerCall(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{
		toolTurn(
			call("c1", "search_products", `{"query":"wax","num_results":1}`),
			call("c2", "get_current_inventory", `{"product_name":"Ceramic Wax"}`),
		),
		textTurn("Ceramic Wax is in stock."),
	}}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(10))

	res, err := engine.Run(context.Background(), "Is the wax in stock?")
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, countTag(res.Trace, TagToolCall, "Calling "))
	assert.Equal(t, 2, countTag(res.Trace, TagToolResult, ""))

	require.Len(t, client.requests, 2)
	msgs := client.requests[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].ToolCalls, 2)

	results := msgs[2].ToolResults
	assert.Equal(t, llm.RoleTool, msgs[2].Role)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.Contains(t, results[0].Content, "[REAL DATA]")
	assert.Equal(t, "c2", results[1].ToolCallID)
	assert.Contains(t, results[1].Content, `"stock":3`)
}

func TestRunInventoryTimeoutContinuesLoop(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{
		toolTurn(call("c1", "get_current_inventory", `{"product_name":"Ceramic Wax"}`)),
		textTurn("Sorry, I could not check stock."),
	}}
	inv := stubInventory{err: fmt.Errorf("request: %w", context.DeadlineExceeded)}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), inv), nil, sysConfig(10))

	res, err := engine.Run(context.Background(), "Stock?")
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)

	require.Len(t, client.requests, 2)
	result := client.requests[1].Messages[2].ToolResults[0]
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, `"status":"error"`)
	assert.Contains(t, result.Content, "Failed to fetch")
}

func TestRunUnknownToolContinuesLoop(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{
		toolTurn(call("c1", "functions.compare_prices", `{}`)),
		textTurn("I can't compare prices."),
	}}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(10))

	res, err := engine.Run(context.Background(), "Compare")
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)

	result := client.requests[1].Messages[2].ToolResults[0]
	assert.True(t, result.IsError)
	assert.Equal(t, "compare_prices", result.ToolName)
	assert.Contains(t, result.Content, "unknown tool compare_prices")
}

func TestRunStopsAtIterationCap(t *testing.T) {
	client := &fakeLLM{repeat: toolTurn(call("c", "search_products", `{"query":"wax"}`))}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(3))

	res, err := engine.Run(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Equal(t, StateMaxIter, res.State)
	assert.Equal(t, FallbackMaxIter, res.FinalText)
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, client.requests, 3)
	assert.ErrorIs(t, res.Err, ErrIterationLimit)
	assert.NotEmpty(t, res.Trace)
	assert.Equal(t, TagError, res.Trace[len(res.Trace)-1].Tag)
}

func TestRunUnexpectedStopReason(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{{llm.NewTextChunk("cut"), llm.NewFinalChunk(llm.StopReasonLength, nil)}}}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(10))

	res, err := engine.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, StateError, res.State)
	assert.Equal(t, FallbackUnexpected, res.FinalText)
	assert.ErrorIs(t, res.Err, ErrModelProtocol)
	assert.Equal(t, 1, countTag(res.Trace, TagWarning, "Unexpected stop reason"))
}

func TestRunToolUseWithoutCalls(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{{llm.NewFinalChunk(llm.StopReasonToolUse, nil)}}}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(10))

	res, err := engine.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, StateError, res.State)
	assert.ErrorIs(t, res.Err, ErrModelProtocol)
}

func TestRunStreamInterrupted(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{{
		llm.NewTextChunk("par"),
		llm.NewErrorChunk("Stream interrupted", errors.New("connection reset"), true),
	}}}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(10))

	res, err := engine.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, StateError, res.State)
	assert.Equal(t, FallbackUnexpected, res.FinalText)
}

func TestRunEngineUnavailable(t *testing.T) {
	client := &fakeLLM{openErr: errors.New("401 invalid api key")}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(10))

	res, err := engine.Run(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, StateError, res.State)
	assert.NotEmpty(t, res.Trace)
}

func TestRunFallbackCatalogRecordsWarning(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{
		toolTurn(call("c1", "search_products", `{"query":"ceramic coating"}`)),
		textTurn("Here are some samples."),
	}}
	engine := NewAgentEngine(client, newRegistry(t, downStore{}, stubInventory{}), nil, sysConfig(10), WithLiveCatalog(false))

	res, err := engine.Run(context.Background(), "coating?")
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, countTag(res.Trace, TagWarning, "Using fallback product data"))
	assert.Equal(t, 1, countTag(res.Trace, TagWarning, "catalog unavailable"))

	result := client.requests[1].Messages[2].ToolResults[0]
	assert.Contains(t, result.Content, "[DUMMY DATA]")
	assert.Contains(t, result.Content, `"provenance":"fallback"`)
}

func TestRunToolsDisabled(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{textTurn("plain answer")}}
	sys := sysConfig(10)
	sys.EnableTools = false
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), &config.Config{SystemPrompt: "custom"}, sys)

	_, err := engine.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, client.requests[0].Tools)
	assert.Equal(t, "custom", client.requests[0].System)
}

func TestRunReportsTraceToObserver(t *testing.T) {
	client := &fakeLLM{turns: [][]llm.StreamChunk{textTurn("hello")}}
	engine := NewAgentEngine(client, newRegistry(t, liveStore(), stubInventory{}), nil, sysConfig(10))

	var seen []TraceEntry
	ctx := WithTraceObserver(context.Background(), func(e TraceEntry) {
		seen = append(seen, e)
	})

	res, err := engine.Run(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, res.Trace, seen)
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateDone, StateError, StateMaxIter} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []State{StateStart, StateCallModel, StateToolExec} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestSummarizeContent(t *testing.T) {
	msg := llm.Message{Content: []llm.ContentBlock{
		llm.NewThinkingBlock("hmm"),
		llm.NewTextBlock(strings.Repeat("a", 150)),
	}}
	hasContent, hasThinking, preview := SummarizeContent(msg)
	assert.True(t, hasContent)
	assert.True(t, hasThinking)
	assert.Equal(t, strings.Repeat("a", 100)+"...", preview)
}

func TestPreviewsKeepRunesWhole(t *testing.T) {
	// The leading ASCII byte puts the 100-byte preview cut inside a rune.
	text := "a" + strings.Repeat("ü", 150)

	args := argumentsPreview(`{"product_name":"` + text + `"}`)
	assert.True(t, utf8.ValidString(args))
	assert.True(t, strings.HasSuffix(args, "..."))
	assert.LessOrEqual(t, len(args), 203)

	_, _, preview := SummarizeContent(llm.Message{Content: []llm.ContentBlock{llm.NewTextBlock(text)}})
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, "a"+strings.Repeat("ü", 49)+"...", preview)
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "héllo", truncateUTF8("héllo", 10))
	assert.Equal(t, "h", truncateUTF8("héllo", 2))
	assert.Equal(t, "hé", truncateUTF8("héllo", 3))
	assert.Equal(t, "", truncateUTF8("日本", 2))
	assert.Equal(t, "日", truncateUTF8("日本", 4))
}

func TestSummarizeContentExactLengthHasNoEllipsis(t *testing.T) {
	text := strings.Repeat("b", 100)
	_, _, preview := SummarizeContent(llm.Message{Content: []llm.ContentBlock{llm.NewTextBlock(text)}})
	assert.Equal(t, text, preview)
}
