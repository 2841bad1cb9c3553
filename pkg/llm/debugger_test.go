package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDebuggerWritesRunFile(t *testing.T) {
	t.Chdir(t.TempDir())

	ctx := context.WithValue(context.Background(), DebugDirContextKey, "run42")
	d := NewStreamDebugger(ctx, "ollama", true)
	d.WriteString(`{"done":false}`)
	d.WriteJSON(map[string]any{"done": true})
	d.Close()

	data, err := os.ReadFile(filepath.Join("debug", "chunks", "ollama", "run42.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"done":false}`)
	assert.Contains(t, string(data), `{"done":true}`)
}

func TestStreamDebuggerDisabled(t *testing.T) {
	t.Chdir(t.TempDir())

	d := NewStreamDebugger(context.Background(), "gemini", false)
	d.WriteString("ignored")
	d.Close()

	_, err := os.Stat("debug")
	assert.True(t, os.IsNotExist(err))
}
