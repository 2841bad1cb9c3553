package gemini

import (
	"context"
	"fmt"
	"log"
	"strings"

	"salesagent/pkg/llm"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/genai"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GeminiClient Google Gemini API client
type GeminiClient struct {
	client       *genai.Client
	model        string
	useThought   bool
	debugEnabled bool
	bufferSize   int
}

// SetDebug toggles raw chunk capture under debug/chunks/gemini.
func (g *GeminiClient) SetDebug(enabled bool) {
	g.debugEnabled = enabled
}

// SetBufferSize sets the capacity of the returned chunk channel.
func (g *GeminiClient) SetBufferSize(n int) {
	if n > 0 {
		g.bufferSize = n
	}
}

// NewGeminiClient creates a Gemini client with a single model and API key
func NewGeminiClient(apiKey string, model string, useThought bool) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:     client,
		model:      model,
		useThought: useThought,
		bufferSize: 100,
	}, nil
}

func (g *GeminiClient) Provider() string {
	return "gemini"
}

// formatModality formats ModalityTokenCount array for logging
func formatModality(details []*genai.ModalityTokenCount) string {
	if len(details) == 0 {
		return "0"
	}
	var res []string
	for _, d := range details {
		res = append(res, fmt.Sprintf("%v: %d", d.Modality, d.TokenCount))
	}
	return strings.Join(res, " | ")
}

// StreamChat opens a GenerateContentStream. It blocks until the first
// response (or error) arrives so that an unreachable backend is reported
// as an error instead of an empty stream.
func (g *GeminiClient) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	apiMessages := convertMessages(req.Messages)

	var systemInstruction *genai.Content
	if req.System != "" {
		systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	var genaiTools []*genai.Tool
	if fds := convertTools(req.Tools); len(fds) > 0 {
		genaiTools = append(genaiTools, &genai.Tool{FunctionDeclarations: fds})
	}

	chunkCh := make(chan llm.StreamChunk, g.bufferSize)
	startResultCh := make(chan error, 1)

	log.Printf("[Gemini] 🌊 Streaming with model: %s...", g.model)

	go func() {
		defer close(chunkCh)

		var thinkingCfg *genai.ThinkingConfig
		if g.useThought {
			thinkingCfg = &genai.ThinkingConfig{
				IncludeThoughts: true,
			}
		}

		iter := g.client.Models.GenerateContentStream(ctx, g.model, apiMessages, &genai.GenerateContentConfig{
			SystemInstruction: systemInstruction,
			Tools:             genaiTools,
			ThinkingConfig:    thinkingCfg,
		})

		debugger := llm.NewStreamDebugger(ctx, "gemini", g.debugEnabled)
		defer debugger.Close()

		started := false
		sawToolCall := false
		var finishReason genai.FinishReason
		var lastUsage *llm.LLMUsage

		for resp, err := range iter {
			if resp != nil {
				debugger.WriteJSON(resp)
			}
			if err != nil {
				// The SDK may return data along with the error
				if resp == nil {
					log.Printf("Gemini Stream Error: %v", err)
					if !started {
						startResultCh <- err
					} else {
						chunkCh <- llm.NewErrorChunk(fmt.Sprintf("Stream interrupted: %v", err), err, true)
					}
					return
				}
				log.Printf("Gemini Stream Error (with data): %v", err)
			}

			if !started {
				started = true
				startResultCh <- nil
			}

			if resp.UsageMetadata != nil {
				u := resp.UsageMetadata
				lastUsage = &llm.LLMUsage{
					PromptTokens:     int(u.PromptTokenCount),
					PromptDetail:     formatModality(u.PromptTokensDetails),
					CompletionTokens: int(u.CandidatesTokenCount),
					CompletionDetail: formatModality(u.CandidatesTokensDetails),
					TotalTokens:      int(u.TotalTokenCount),
					ThoughtsTokens:   int(u.ThoughtsTokenCount),
					CachedTokens:     int(u.CachedContentTokenCount),
				}
			}

			for _, candidate := range resp.Candidates {
				if candidate.FinishReason != "" {
					finishReason = candidate.FinishReason
				}

				if candidate.Content == nil {
					continue
				}

				var blocks []llm.ContentBlock
				var toolCalls []llm.ToolCall

				for _, part := range candidate.Content.Parts {
					if part.Text != "" {
						if part.Thought {
							blocks = append(blocks, llm.NewThinkingBlock(part.Text))
						} else {
							blocks = append(blocks, llm.NewTextBlock(part.Text))
						}
					}

					if part.FunctionCall != nil {
						sawToolCall = true
						fc := part.FunctionCall
						if fc.ID == "" {
							// Gemini stream IDs are sometimes missing
							fc.ID = uuid.NewString()
						}
						argsB, _ := json.Marshal(fc.Args)
						toolCalls = append(toolCalls, llm.ToolCall{
							ID:   fc.ID,
							Name: fc.Name,
							Function: llm.FunctionCall{
								Name:      fc.Name,
								Arguments: string(argsB),
							},
							// Echoed back verbatim, keeps thought_signature
							Meta: map[string]any{
								"gemini_function_call": fc,
							},
						})
						log.Printf("[Gemini] 🛠️ Tool Call: %s(%s)", fc.Name, string(argsB))
					}
				}

				if len(blocks) > 0 || len(toolCalls) > 0 {
					chunkCh <- llm.StreamChunk{
						ContentBlocks: blocks,
						ToolCalls:     toolCalls,
					}
				}
			}
		}

		if !started {
			startResultCh <- nil
		}

		reason := normalizeStopReason(finishReason, sawToolCall)
		if lastUsage != nil {
			lastUsage.StopReason = string(finishReason)
			llm.LogUsage(g.model, lastUsage)
		}
		chunkCh <- llm.NewFinalChunk(reason, lastUsage)
	}()

	select {
	case err := <-startResultCh:
		if err != nil {
			return nil, err
		}
		return chunkCh, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func normalizeStopReason(reason genai.FinishReason, sawToolCall bool) string {
	if sawToolCall {
		return llm.StopReasonToolUse
	}
	switch reason {
	case genai.FinishReasonStop:
		return llm.StopReasonEndTurn
	case genai.FinishReasonMaxTokens:
		return llm.StopReasonLength
	case "":
		return ""
	default:
		return strings.ToLower(string(reason))
	}
}

func convertTools(specs []llm.ToolSpec) []*genai.FunctionDeclaration {
	var fds []*genai.FunctionDeclaration
	for _, s := range specs {
		fds = append(fds, &genai.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.Parameters,
		})
	}
	return fds
}

// convertMessages converts message list to GenAI format
func convertMessages(messages []llm.Message) []*genai.Content {
	var genaiContents []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			// Carried by SystemInstruction
			continue

		case llm.RoleTool:
			// All results of one turn travel in a single user content
			var parts []*genai.Part
			for _, r := range msg.ToolResults {
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       r.ToolCallID,
						Name:     r.ToolName,
						Response: responsePayload(r.Content),
					},
				})
			}
			if len(parts) > 0 {
				genaiContents = append(genaiContents, &genai.Content{Role: "user", Parts: parts})
			}
			continue
		}

		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}

		var parts []*genai.Part
		for _, block := range msg.Content {
			if block.Text == "" {
				continue
			}
			switch block.Type {
			case llm.BlockTypeText:
				parts = append(parts, &genai.Part{Text: block.Text})
			case llm.BlockTypeThinking:
				parts = append(parts, &genai.Part{Text: block.Text, Thought: true})
			}
		}

		for _, tc := range msg.ToolCalls {
			if originalFC, ok := tc.Meta["gemini_function_call"].(*genai.FunctionCall); ok {
				parts = append(parts, &genai.Part{FunctionCall: originalFC})
				continue
			}

			// Rebuilt calls lose thought_signature
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: args,
				},
			})
		}

		if len(parts) > 0 {
			genaiContents = append(genaiContents, &genai.Content{
				Role:  role,
				Parts: parts,
			})
		}
	}

	return genaiContents
}

// responsePayload decodes a JSON object result; anything else is wrapped
// under "result".
func responsePayload(content string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(content), &m); err == nil && m != nil {
		return m
	}
	return map[string]any{"result": content}
}

// IsTransientError implements the llm.LLMClient interface
func (g *GeminiClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()

	// 1. Google API common 503 Service Unavailable / Overloaded
	if strings.Contains(errMsg, "503") || strings.Contains(strings.ToLower(errMsg), "overloaded") {
		return true
	}

	// 2. 429 Too Many Requests (Rate Limit)
	if strings.Contains(errMsg, "429") || strings.Contains(strings.ToLower(errMsg), "resource exhausted") {
		return true
	}

	// 3. 500 Internal Error (Occasional Google Gemini crashes)
	if strings.Contains(errMsg, "500") || strings.Contains(strings.ToLower(errMsg), "internal error") {
		return true
	}

	return false
}
