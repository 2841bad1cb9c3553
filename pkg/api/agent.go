package api

import (
	"context"

	"salesagent/pkg/agent"
)

// AgentEngine answers one customer question per run.
type AgentEngine interface {
	Run(ctx context.Context, question string) (*agent.RunResult, error)
}
