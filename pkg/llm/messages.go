package llm

import (
	"strings"
	"time"
)

//----------------------------------------------------------------
// Message
//----------------------------------------------------------------

// Message is one entry of a conversation.
type Message struct {
	ID        string         `json:"id,omitempty"`
	Role      string         `json:"role"`    // "user", "assistant", "tool"
	Content   []ContentBlock `json:"content"` // text / thinking blocks
	Timestamp int64          `json:"timestamp,omitempty"`

	// ToolCalls holds the raw tool-use requests of an assistant turn.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolResults bundles every result answering the preceding assistant
	// turn (only for role: tool).
	ToolResults []ToolResultBlock `json:"tool_results,omitempty"`
}

// ToolCall is a tool-use request emitted by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Function FunctionCall `json:"function"`

	// Meta keeps provider specific data (e.g. Gemini's thought_signature).
	// Never serialized, only used to echo the call back to the same provider.
	Meta map[string]any `json:"-"`
}

// FunctionCall carries the tool name and its JSON encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object
}

// ToolResultBlock answers one ToolCall.
type ToolResultBlock struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    string `json:"content"` // JSON encoded result envelope
	IsError    bool   `json:"is_error,omitempty"`
}

//----------------------------------------------------------------
// ContentBlock
//----------------------------------------------------------------

// ContentBlock is one unit of message content.
type ContentBlock struct {
	Type string `json:"type"` // "text", "thinking", "error"
	Text string `json:"text,omitempty"`
}

//----------------------------------------------------------------
// ToolSpec / ChatRequest
//----------------------------------------------------------------

// ToolSpec describes a callable tool to the model. Parameters is a JSON
// Schema object.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatRequest is everything a provider needs for one reasoning call.
type ChatRequest struct {
	System   string
	Tools    []ToolSpec
	Messages []Message
}

//----------------------------------------------------------------
// StreamChunk
//----------------------------------------------------------------

// StreamChunk is one incremental piece of a streamed model response.
type StreamChunk struct {
	// Incremental content blocks
	ContentBlocks []ContentBlock `json:"content_blocks,omitempty"`

	// Incremental tool calls
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Set on the last chunk of a stream
	IsFinal bool `json:"is_final"`

	// Normalized stop reason, only on the final chunk
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage stats, always present on the final chunk when the provider reports them
	Usage *LLMUsage `json:"usage,omitempty"`

	// Error is a displayable error notice; RawError is the underlying
	// failure that aborted the stream.
	Error    string `json:"error,omitempty"`
	RawError error  `json:"-"`
}

//----------------------------------------------------------------
// Helper Functions - Message
//----------------------------------------------------------------

// NewTextMessage builds a message with a single text block.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:      role,
		Content:   []ContentBlock{NewTextBlock(text)},
		Timestamp: time.Now().Unix(),
	}
}

// NewUserMessage builds a user message.
func NewUserMessage(text string) Message {
	return NewTextMessage(RoleUser, text)
}

// NewAssistantMessage builds an assistant message.
func NewAssistantMessage(text string) Message {
	return NewTextMessage(RoleAssistant, text)
}

// NewToolResultMessage bundles the results of one tool-use turn.
func NewToolResultMessage(results []ToolResultBlock) Message {
	return Message{
		Role:        RoleTool,
		ToolResults: results,
		Timestamp:   time.Now().Unix(),
	}
}

// AddContentBlock appends a block, merging consecutive deltas of the same
// text-like type into one block.
func (m *Message) AddContentBlock(block ContentBlock) {
	if n := len(m.Content); n > 0 && block.Type != BlockTypeError && m.Content[n-1].Type == block.Type {
		m.Content[n-1].Text += block.Text
		return
	}
	m.Content = append(m.Content, block)
}

// GetTextContent concatenates all text blocks (thinking excluded).
func (m *Message) GetTextContent() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if block.Type == BlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// FirstText returns the first non-empty text block.
func (m *Message) FirstText() (string, bool) {
	for _, block := range m.Content {
		if block.Type == BlockTypeText && block.Text != "" {
			return block.Text, true
		}
	}
	return "", false
}

//----------------------------------------------------------------
// Helper Functions - ContentBlock / StreamChunk
//----------------------------------------------------------------

// NewTextBlock builds a text block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// NewThinkingBlock builds a thinking block.
func NewThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeThinking, Text: text}
}

// NewErrorBlock builds an error block.
func NewErrorBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeError, Text: text}
}

// NewTextChunk builds a text delta chunk.
func NewTextChunk(text string) StreamChunk {
	return StreamChunk{ContentBlocks: []ContentBlock{NewTextBlock(text)}}
}

// NewThinkingChunk builds a thinking delta chunk.
func NewThinkingChunk(text string) StreamChunk {
	return StreamChunk{ContentBlocks: []ContentBlock{NewThinkingBlock(text)}}
}

// NewFinalChunk builds the closing chunk with usage stats.
func NewFinalChunk(reason string, usage *LLMUsage) StreamChunk {
	return StreamChunk{
		IsFinal:      true,
		FinishReason: reason,
		Usage:        usage,
	}
}

// NewErrorChunk builds an error chunk. A non-nil err aborts collection.
func NewErrorChunk(msg string, err error, isFinal bool) StreamChunk {
	return StreamChunk{
		Error:    msg,
		RawError: err,
		IsFinal:  isFinal,
	}
}
