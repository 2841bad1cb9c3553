package gateway

import (
	"fmt"

	"salesagent/pkg/api"
	"salesagent/pkg/monitor"
)

// GatewayBuilder provides a fluent builder pattern interface for constructing
// and initializing a GatewayManager with all its necessary dependencies.
//
// All components (channels, engine, monitor) are pre-built and injected
// as instances; the Builder simply assembles and starts them.
type GatewayBuilder struct {
	gw          *GatewayManager
	monitor     monitor.Monitor
	channels    []api.Channel
	agentEngine api.AgentEngine
}

// NewGatewayBuilder creates a fresh GatewayBuilder instance and allocates
// an internal GatewayManager to be configured.
func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		gw: NewGatewayManager(),
	}
}

// WithMonitor injects a monitoring implementation into the builder.
// This monitor will be started automatically during the Build() process.
func (b *GatewayBuilder) WithMonitor(m monitor.Monitor) *GatewayBuilder {
	b.monitor = m
	return b
}

// WithChannel adds pre-built channel instances to the gateway.
func (b *GatewayBuilder) WithChannel(channels ...api.Channel) *GatewayBuilder {
	b.channels = append(b.channels, channels...)
	return b
}

// WithAgentEngine injects the agent engine answering questions.
func (b *GatewayBuilder) WithAgentEngine(engine api.AgentEngine) *GatewayBuilder {
	b.agentEngine = engine
	return b
}

// Build wires the engine and monitor, registers all channels and starts
// everything. Returns the operational GatewayManager or the first error.
func (b *GatewayBuilder) Build() (*GatewayManager, error) {
	if b.agentEngine == nil {
		return nil, fmt.Errorf("gateway: agent engine is required")
	}
	b.gw.SetAgentEngine(b.agentEngine)

	if b.monitor != nil {
		b.gw.SetMonitor(b.monitor)
		if err := b.monitor.Start(); err != nil {
			return nil, fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	for _, c := range b.channels {
		b.gw.Register(c)
	}

	if err := b.gw.StartAll(); err != nil {
		return nil, fmt.Errorf("failed to start channels: %w", err)
	}

	return b.gw, nil
}
