package agent

import "sync"

// Tag classifies a trace entry.
type Tag string

const (
	TagInfo       Tag = "info"
	TagToolCall   Tag = "tool-call"
	TagToolResult Tag = "tool-result"
	TagWarning    Tag = "warning"
	TagError      Tag = "error"
)

// TraceEntry is one human-readable diagnostic line of a run.
type TraceEntry struct {
	Tag     Tag    `json:"tag"`
	Message string `json:"message"`
}

// trace collects the entries of one run and forwards each to an optional
// observer as it is recorded.
type trace struct {
	mu       sync.Mutex
	entries  []TraceEntry
	observer func(TraceEntry)
}

func (t *trace) add(tag Tag, msg string) {
	e := TraceEntry{Tag: tag, Message: msg}
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
	if t.observer != nil {
		t.observer(e)
	}
}

func (t *trace) snapshot() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
