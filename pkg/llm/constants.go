package llm

// StopReason constants define normalized reasons for LLM generation termination.
// All providers must normalize their native stop reasons to these values.
const (
	StopReasonEndTurn = "end_turn" // Normal completion, the reply is final
	StopReasonToolUse = "tool_use" // The model is waiting on tool results
	StopReasonLength  = "length"   // Output truncated due to token limit
)

// ContentBlock Type constants define the supported content block formats
// used throughout the message pipeline.
const (
	BlockTypeText     = "text"     // Plain text content
	BlockTypeThinking = "thinking" // Internal reasoning/chain-of-thought
	BlockTypeError    = "error"    // Provider-side error notice
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

type contextKey string

// DebugDirContextKey carries the run identifier used to group debug chunk
// files and log lines of a single orchestration run.
const DebugDirContextKey contextKey = "llm_debug_dir"
