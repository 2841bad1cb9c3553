package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry acts as a central inventory for all tools available to the agent.
// It is safe for concurrent dispatch.
type Registry struct {
	mu    sync.RWMutex
	tools map[ID]Tool
	order []ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[ID]Tool),
	}
}

// Register adds tools. Registering an ID twice is an error.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		id := t.Schema().Name
		if _, exists := r.tools[id]; exists {
			return fmt.Errorf("tool %q already registered", id)
		}
		r.tools[id] = t
		r.order = append(r.order, id)
	}
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[ID(name)]
	return t, ok
}

// Schemas lists tool schemas in registration order.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tools[id].Schema())
	}
	return out
}

// Dispatch validates args and runs the named tool. It never returns a
// fault: unknown tools, invalid arguments, tool errors and panics all
// become error results.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (res Result) {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(name, fmt.Errorf("%w %s", ErrUnknownTool, name))
	}

	schema := t.Schema()
	validated, err := schema.Validate(args)
	if err != nil {
		return ErrorResult(name, err)
	}

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "Tool panicked", "tool", name, "panic", p)
			res = ErrorResult(name, fmt.Errorf("%w: %s panicked: %v", ErrToolExecution, name, p))
		}
	}()

	out, err := t.Execute(ctx, validated)
	if err != nil {
		slog.WarnContext(ctx, "Tool failed", "tool", name, "error", err)
		return ErrorResult(name, err)
	}

	return Result{
		Tool:     name,
		Status:   StatusSuccess,
		Payload:  out.Payload,
		Summary:  out.Summary,
		Warnings: out.Warnings,
	}
}
