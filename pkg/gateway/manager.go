package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"salesagent/pkg/agent"
	"salesagent/pkg/api"
	"salesagent/pkg/monitor"
)

// ErrNoEngine is returned by Ask when no agent engine is attached.
var ErrNoEngine = errors.New("gateway: no agent engine configured")

// GatewayManager owns the channels and routes their questions to the agent engine.
type GatewayManager struct {
	channels map[string]Channel
	engine   api.AgentEngine
	monitor  monitor.Monitor
	mu       sync.RWMutex
}

// NewGatewayManager creates an empty GatewayManager.
func NewGatewayManager() *GatewayManager {
	return &GatewayManager{
		channels: make(map[string]Channel),
	}
}

// SetAgentEngine sets the engine answering questions.
func (g *GatewayManager) SetAgentEngine(engine api.AgentEngine) {
	g.engine = engine
}

// SetMonitor sets the monitor receiving every question and answer.
func (g *GatewayManager) SetMonitor(m monitor.Monitor) {
	g.monitor = m
}

// Register adds a channel.
func (g *GatewayManager) Register(c Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
}

// GetChannel returns a registered channel.
func (g *GatewayManager) GetChannel(id string) (Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// StartAll starts every registered channel.
func (g *GatewayManager) StartAll() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		log.Printf("Starting channel: %s", id)
		if err := c.Start(g); err != nil {
			return fmt.Errorf("failed to start channel %s: %w", id, err)
		}
	}
	return nil
}

// StopAll stops every registered channel.
func (g *GatewayManager) StopAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		log.Printf("Stopping channel: %s", id)
		if err := c.Stop(); err != nil {
			log.Printf("Error stopping channel %s: %v", id, err)
		}
	}
}

// Ask implements ChannelContext. The question and the final answer are
// broadcast to the monitor.
func (g *GatewayManager) Ask(ctx context.Context, session SessionContext, question string) (*agent.RunResult, error) {
	slog.InfoContext(ctx, "Question received", "channel", session.ChannelID, "user", session.Username, "content", question)
	g.broadcast(session, "USER", question)

	if g.engine == nil {
		return nil, ErrNoEngine
	}

	res, err := g.engine.Run(ctx, question)
	if err != nil {
		slog.ErrorContext(ctx, "Run failed", "channel", session.ChannelID, "error", err)
		g.broadcast(session, "ERROR", err.Error())
		return res, err
	}

	g.broadcast(session, "ASSISTANT", res.FinalText)
	return res, nil
}

func (g *GatewayManager) broadcast(session SessionContext, kind, content string) {
	if g.monitor == nil {
		return
	}
	g.monitor.OnMessage(monitor.MonitorMessage{
		Timestamp:   time.Now(),
		MessageType: kind,
		ChannelID:   session.ChannelID,
		Username:    session.Username,
		Content:     content,
	})
}
