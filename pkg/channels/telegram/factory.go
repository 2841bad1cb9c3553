package telegram

import (
	"fmt"

	"salesagent/pkg/channels"
	"salesagent/pkg/config"
	"salesagent/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TelegramFactory builds Telegram channels.
type TelegramFactory struct{}

// Create implements ChannelFactory
func (f *TelegramFactory) Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (gateway.Channel, error) {
	var tgCfg TelegramConfig
	if err := json.Unmarshal(rawConfig, &tgCfg); err != nil {
		return nil, fmt.Errorf("failed to parse telegram config: %w", err)
	}

	if tgCfg.Token == "" {
		return nil, fmt.Errorf("missing telegram token")
	}

	limit := 0
	if system != nil {
		limit = system.TelegramMessageLimit
	}
	return NewTelegramChannel(tgCfg, limit)
}

func init() {
	channels.RegisterChannel("telegram", &TelegramFactory{})
}
