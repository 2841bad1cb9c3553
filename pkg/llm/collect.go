package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStreamInterrupted is returned by Collect when a stream aborted mid-response.
var ErrStreamInterrupted = errors.New("llm: stream interrupted")

// Response is a fully collected reasoning-engine reply.
type Response struct {
	StopReason string
	Message    Message
	Usage      *LLMUsage
}

// Text returns the first text block of the reply.
func (r *Response) Text() (string, bool) {
	return r.Message.FirstText()
}

// Collect drains a StreamChunk channel into a Response. Text and thinking
// deltas are merged into blocks, tool calls keep their emission order.
//
// When the provider did not report a stop reason, tool calls imply
// StopReasonToolUse; otherwise StopReason stays empty.
func Collect(ctx context.Context, chunkCh <-chan StreamChunk) (*Response, error) {
	resp := &Response{
		Message: Message{
			Role:      RoleAssistant,
			Content:   []ContentBlock{},
			Timestamp: time.Now().Unix(),
		},
	}

	for {
		select {
		case <-ctx.Done():
			go drain(chunkCh)
			return resp, ctx.Err()
		case chunk, ok := <-chunkCh:
			if !ok {
				finish(resp)
				return resp, nil
			}
			if chunk.RawError != nil {
				go drain(chunkCh)
				return resp, fmt.Errorf("%w: %v", ErrStreamInterrupted, chunk.RawError)
			}
			if chunk.Error != "" {
				resp.Message.AddContentBlock(NewErrorBlock(chunk.Error))
			}
			for _, b := range chunk.ContentBlocks {
				resp.Message.AddContentBlock(b)
			}
			resp.Message.ToolCalls = append(resp.Message.ToolCalls, chunk.ToolCalls...)
			if chunk.Usage != nil {
				resp.Usage = chunk.Usage
			}
			if chunk.IsFinal {
				resp.StopReason = chunk.FinishReason
				finish(resp)
				go drain(chunkCh)
				return resp, nil
			}
		}
	}
}

func finish(resp *Response) {
	if resp.StopReason == "" && len(resp.Message.ToolCalls) > 0 {
		resp.StopReason = StopReasonToolUse
	}
}

// drain releases a producer still writing into an abandoned stream.
func drain(chunkCh <-chan StreamChunk) {
	for range chunkCh {
	}
}
