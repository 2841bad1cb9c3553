package gateway

import (
	"salesagent/pkg/api"
)

// Aliases so channel packages only need to import gateway.
type Channel = api.Channel
type ChannelContext = api.ChannelContext
type SessionContext = api.SessionContext
