package web

import (
	"fmt"
	"os"
	"strconv"

	"salesagent/pkg/channels"
	"salesagent/pkg/config"
	"salesagent/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// WebFactory builds the HTTP/websocket channel.
type WebFactory struct{}

// Create implements ChannelFactory
func (f *WebFactory) Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (gateway.Channel, error) {
	var cfg WebConfig

	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse web config: %w", err)
		}
	}

	// PORT is honoured when the config leaves the port unset
	if cfg.Port == 0 {
		if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil && p > 0 {
			cfg.Port = p
		}
	}

	return NewWebChannel(cfg), nil
}

func init() {
	channels.RegisterChannel("web", &WebFactory{})
}
