package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"salesagent/pkg/config"
	"salesagent/pkg/llm"
	"salesagent/pkg/tools"
	"salesagent/pkg/utils"
)

// Dispatcher executes tool invocations and describes the available tools.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) tools.Result
	Schemas() []tools.Schema
}

// RunResult is the outcome of one orchestration run.
type RunResult struct {
	RunID      string
	FinalText  string
	Trace      []TraceEntry
	State      State
	Iterations int
	// Err is the terminal cause for StateError and StateMaxIter runs.
	// Run itself returns nil for those.
	Err error
}

// AgentEngine drives the reasoning/tool loop for one question at a time.
// It holds no per-run state and is safe for concurrent runs.
type AgentEngine struct {
	client        llm.LLMClient
	registry      Dispatcher
	systemPrompt  string
	maxIterations int
	llmTimeout    time.Duration
	toolTimeout   time.Duration
	enableTools   bool
	liveCatalog   bool
}

// Option customizes an AgentEngine.
type Option func(*AgentEngine)

// WithLiveCatalog records whether search is backed by a live catalog; it
// only affects the startup trace.
func WithLiveCatalog(live bool) Option {
	return func(e *AgentEngine) { e.liveCatalog = live }
}

// NewAgentEngine builds an engine from the app and system configuration.
func NewAgentEngine(client llm.LLMClient, registry Dispatcher, appCfg *config.Config, sysCfg *config.SystemConfig, opts ...Option) *AgentEngine {
	if sysCfg == nil {
		sysCfg = config.DefaultSystemConfig()
	}

	prompt := config.DefaultSystemPrompt
	if appCfg != nil && appCfg.SystemPrompt != "" {
		prompt = appCfg.SystemPrompt
	}

	e := &AgentEngine{
		client:        client,
		registry:      registry,
		systemPrompt:  prompt,
		maxIterations: sysCfg.MaxIterations,
		llmTimeout:    time.Duration(sysCfg.LLMTimeoutMs) * time.Millisecond,
		toolTimeout:   time.Duration(sysCfg.ToolTimeoutMs) * time.Millisecond,
		enableTools:   sysCfg.EnableTools,
		liveCatalog:   true,
	}
	if e.maxIterations <= 0 {
		e.maxIterations = 10
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type observerKey struct{}

// WithTraceObserver returns a context whose runs report each trace entry
// to fn as it is recorded.
func WithTraceObserver(ctx context.Context, fn func(TraceEntry)) context.Context {
	return context.WithValue(ctx, observerKey{}, fn)
}

// TraceObserver returns the observer installed by WithTraceObserver.
func TraceObserver(ctx context.Context) (func(TraceEntry), bool) {
	fn, ok := ctx.Value(observerKey{}).(func(TraceEntry))
	return fn, ok
}

// Run answers question. It returns an error only when the reasoning engine
// cannot be reached (ErrEngineUnavailable); every other outcome, including
// protocol errors and the iteration cap, is a RunResult with fallback text.
func (e *AgentEngine) Run(ctx context.Context, question string) (*RunResult, error) {
	runID := utils.GenerateID()
	ctx = context.WithValue(ctx, llm.DebugDirContextKey, runID)

	tr := &trace{}
	if fn, ok := TraceObserver(ctx); ok {
		tr.observer = fn
	}

	res := &RunResult{RunID: runID, State: StateStart}
	finish := func(state State, text string, cause error) *RunResult {
		res.State = state
		res.FinalText = text
		res.Err = cause
		res.Trace = tr.snapshot()
		return res
	}

	start := time.Now()
	slog.InfoContext(ctx, "Run started", "question", question)
	defer func() {
		slog.InfoContext(ctx, "Run finished", "state", res.State, "iterations", res.Iterations, "duration", time.Since(start))
	}()

	tr.add(TagInfo, "Agent started")
	if e.liveCatalog {
		tr.add(TagInfo, "Using live catalog search")
	} else {
		tr.add(TagWarning, "Using fallback product data")
	}
	tr.add(TagInfo, fmt.Sprintf("Question: %s", question))

	history := llm.NewChatHistory()
	history.Add(llm.NewUserMessage(question))

	specs := e.toolSpecs()

	for iter := 1; iter <= e.maxIterations; iter++ {
		res.Iterations = iter
		res.State = StateCallModel
		tr.add(TagInfo, fmt.Sprintf("Loop %d", iter))

		resp, err := e.callModel(ctx, specs, history)
		if err != nil {
			if errors.Is(err, ErrEngineUnavailable) {
				tr.add(TagError, err.Error())
				finish(StateError, "", err)
				return res, err
			}
			tr.add(TagError, fmt.Sprintf("Model stream failed: %v", err))
			return finish(StateError, FallbackUnexpected, fmt.Errorf("%w: %v", ErrModelProtocol, err)), nil
		}

		tr.add(TagInfo, fmt.Sprintf("Stop reason: %s", resp.StopReason))

		switch resp.StopReason {
		case llm.StopReasonEndTurn:
			text, ok := resp.Text()
			if !ok {
				text = FallbackNoResponse
			}
			history.Add(resp.Message)
			tr.add(TagInfo, "finished")
			return finish(StateDone, text, nil), nil

		case llm.StopReasonToolUse:
			if len(resp.Message.ToolCalls) == 0 {
				tr.add(TagWarning, "Tool use signalled without any tool call")
				return finish(StateError, FallbackUnexpected, fmt.Errorf("%w: tool_use without calls", ErrModelProtocol)), nil
			}

			res.State = StateToolExec
			history.Add(resp.Message)
			history.Add(llm.NewToolResultMessage(e.dispatchAll(ctx, resp.Message.ToolCalls, tr)))

		default:
			tr.add(TagWarning, fmt.Sprintf("Unexpected stop reason: %q", resp.StopReason))
			return finish(StateError, FallbackUnexpected, fmt.Errorf("%w: stop reason %q", ErrModelProtocol, resp.StopReason)), nil
		}
	}

	tr.add(TagError, "max iterations reached")
	return finish(StateMaxIter, FallbackMaxIter, fmt.Errorf("%w: %d", ErrIterationLimit, e.maxIterations)), nil
}

// callModel runs one reasoning call under the per-call deadline. A failure
// to open the stream is wrapped in ErrEngineUnavailable.
func (e *AgentEngine) callModel(ctx context.Context, specs []llm.ToolSpec, history *llm.ChatHistory) (*llm.Response, error) {
	callCtx := ctx
	if e.llmTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.llmTimeout)
		defer cancel()
	}

	chunkCh, err := e.client.StreamChat(callCtx, llm.ChatRequest{
		System:   e.systemPrompt,
		Tools:    specs,
		Messages: history.GetMessages(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "LLM stream init failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	resp, err := llm.Collect(callCtx, chunkCh)
	if err != nil {
		return nil, err
	}

	hasContent, hasThinking, preview := SummarizeContent(resp.Message)
	slog.DebugContext(ctx, "Model replied",
		"stop_reason", resp.StopReason,
		"tool_calls", len(resp.Message.ToolCalls),
		"content", hasContent,
		"thinking", hasThinking,
		"preview", preview,
	)
	return resp, nil
}

func (e *AgentEngine) toolSpecs() []llm.ToolSpec {
	if !e.enableTools || e.registry == nil {
		return nil
	}
	schemas := e.registry.Schemas()
	specs := make([]llm.ToolSpec, 0, len(schemas))
	for _, s := range schemas {
		specs = append(specs, llm.ToolSpec{
			Name:        string(s.Name),
			Description: s.Description,
			Parameters:  s.JSONSchema(),
		})
	}
	return specs
}

// dispatchAll executes the calls of one turn in emitted order and returns
// exactly one result block per call.
func (e *AgentEngine) dispatchAll(ctx context.Context, calls []llm.ToolCall, tr *trace) []llm.ToolResultBlock {
	blocks := make([]llm.ToolResultBlock, 0, len(calls))
	for _, tc := range calls {
		blocks = append(blocks, e.resolveToolCall(ctx, tc, tr))
	}
	return blocks
}

// resolveToolCall decodes, dispatches and traces a single call.
func (e *AgentEngine) resolveToolCall(ctx context.Context, tc llm.ToolCall, tr *trace) llm.ToolResultBlock {
	name := strings.TrimPrefix(tc.Name, "functions.")
	if name == "" {
		name = tc.Function.Name
	}

	tr.add(TagToolCall, fmt.Sprintf("Calling %s with %s", name, argumentsPreview(tc.Function.Arguments)))

	var result tools.Result
	args, err := tools.DecodeArguments(tc.Function.Arguments)
	if err != nil {
		result = tools.ErrorResult(name, err)
	} else if e.registry == nil {
		result = tools.ErrorResult(name, fmt.Errorf("%w %s", tools.ErrUnknownTool, name))
	} else {
		dctx := ctx
		if e.toolTimeout > 0 {
			var cancel context.CancelFunc
			dctx, cancel = context.WithTimeout(ctx, e.toolTimeout)
			defer cancel()
		}
		slog.InfoContext(ctx, "Executing tool", "name", name, "args", args)
		result = e.registry.Dispatch(dctx, name, args)
	}
	result.InvocationID = tc.ID

	for _, w := range result.Warnings {
		tr.add(TagWarning, w)
	}

	if result.IsError() {
		tr.add(TagToolResult, fmt.Sprintf("%s failed: %s", name, result.Message))
	} else {
		summary := result.Summary
		if summary == "" {
			summary = "ok"
		}
		tr.add(TagToolResult, fmt.Sprintf("%s: %s", name, summary))
	}

	return llm.ToolResultBlock{
		ToolCallID: tc.ID,
		ToolName:   name,
		Content:    result.Content(),
		IsError:    result.IsError(),
	}
}

func argumentsPreview(raw string) string {
	if raw == "" {
		return "{}"
	}
	if len(raw) > 200 {
		return truncateUTF8(raw, 200) + "..."
	}
	return raw
}

// truncateUTF8 returns the longest prefix of s that fits in n bytes without
// splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// SummarizeContent performs a single pass over the message to derive content info.
func SummarizeContent(msg llm.Message) (hasContent, hasThinking bool, preview string) {
	var sb strings.Builder
	sb.Grow(100)
	truncated := false

	for _, b := range msg.Content {
		if b.Type == llm.BlockTypeThinking && len(b.Text) > 0 {
			hasThinking = true
		} else if b.Type == llm.BlockTypeText && len(b.Text) > 0 {
			hasContent = true
			if !truncated {
				remaining := 100 - sb.Len()
				if len(b.Text) > remaining {
					sb.WriteString(truncateUTF8(b.Text, remaining))
					truncated = true
				} else {
					sb.WriteString(b.Text)
				}
			}
		}
	}

	preview = sb.String()
	if truncated {
		preview += "..."
	}
	return
}
