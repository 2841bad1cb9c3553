package monitor

import "time"

// MonitorMessage is one observed question, answer or failure.
type MonitorMessage struct {
	Timestamp   time.Time
	MessageType string // "USER", "ASSISTANT" or "ERROR"
	ChannelID   string
	Username    string
	Content     string
}

// Monitor observes traffic flowing through the gateway.
type Monitor interface {
	Start() error
	Stop() error
	OnMessage(msg MonitorMessage)
}
