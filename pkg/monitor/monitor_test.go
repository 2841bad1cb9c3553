package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"salesagent/pkg/llm"

	"github.com/stretchr/testify/assert"
)

func TestCustomHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelDebug})).With("component", "agent")

	ctx := context.WithValue(context.Background(), llm.DebugDirContextKey, "65cfda3f0011")
	logger.InfoContext(ctx, "Executing tool", "name", "search_products", "count", 3)

	line := buf.String()
	assert.Contains(t, line, "[INFO] [65cfda3f0011] Executing tool")
	assert.Contains(t, line, `component="agent"`)
	assert.Contains(t, line, `name="search_products"`)
	assert.Contains(t, line, "count=3")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestCustomHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelWarn}))
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WARN] shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestCLIMonitor(t *testing.T) {
	var buf bytes.Buffer
	m := NewCLIMonitorWithWriter(&buf)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	m.OnMessage(MonitorMessage{Timestamp: ts, MessageType: "USER", ChannelID: "web", Username: "ana", Content: "wax?"})
	m.OnMessage(MonitorMessage{Timestamp: ts, MessageType: "ASSISTANT", Content: "Try this."})
	m.OnMessage(MonitorMessage{Timestamp: ts, MessageType: "ERROR", ChannelID: "telegram", Content: "boom"})

	out := buf.String()
	assert.Contains(t, out, "[2024-05-01 10:00:00]")
	assert.Contains(t, out, "[web/ana] wax?")
	assert.Contains(t, out, "[AI] Try this.")
	assert.Contains(t, out, "[ERROR/telegram] boom")
}
