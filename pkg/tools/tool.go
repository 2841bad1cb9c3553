// Package tools holds the callable capabilities offered to the reasoning
// engine and the registry that dispatches invocations to them.
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ID enumerates the tools known to the agent.
type ID string

const (
	SearchProducts      ID = "search_products"
	GetCurrentInventory ID = "get_current_inventory"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrToolExecution    = errors.New("tool execution failed")
)

// Parameter types understood by Schema validation.
const (
	TypeString  = "string"
	TypeInteger = "integer"
)

// Param declares one tool argument. Default only applies to optional params.
type Param struct {
	Name        string
	Type        string
	Description string
	Default     any
}

// Schema describes a tool's name, purpose and arguments.
type Schema struct {
	Name        ID
	Description string
	Required    []Param
	Optional    []Param
}

// Tool is a capability the agent can invoke. Execute receives arguments
// already validated against Schema, defaults applied.
type Tool interface {
	Schema() Schema
	Execute(ctx context.Context, args map[string]any) (Output, error)
}

// Output is what a tool produced. Summary is a one-line trace note;
// Warnings flag degraded data.
type Output struct {
	Payload  map[string]any
	Summary  string
	Warnings []string
}

// JSONSchema renders the schema's arguments as a JSON Schema object.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Required)+len(s.Optional))
	required := make([]string, 0, len(s.Required))

	for _, p := range s.Required {
		props[p.Name] = p.jsonSchema()
		required = append(required, p.Name)
	}
	for _, p := range s.Optional {
		props[p.Name] = p.jsonSchema()
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func (p Param) jsonSchema() map[string]any {
	m := map[string]any{
		"type":        p.Type,
		"description": p.Description,
	}
	if p.Default != nil {
		m["default"] = p.Default
	}
	return m
}

// Validate checks args against the schema and returns a copy with
// defaults applied. Integer params accept JSON numbers without a
// fractional part and come out as int.
func (s Schema) Validate(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args)+len(s.Optional))
	for k, v := range args {
		out[k] = v
	}

	for _, p := range s.Required {
		v, ok := args[p.Name]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: missing required parameter %q", ErrInvalidArguments, p.Name)
		}
		cv, err := p.coerce(v)
		if err != nil {
			return nil, err
		}
		out[p.Name] = cv
	}

	for _, p := range s.Optional {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}
		cv, err := p.coerce(v)
		if err != nil {
			return nil, err
		}
		out[p.Name] = cv
	}

	return out, nil
}

func (p Param) coerce(v any) (any, error) {
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q must be a string", ErrInvalidArguments, p.Name)
		}
		return s, nil
	case TypeInteger:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) || math.IsInf(n, 0) {
				return nil, fmt.Errorf("%w: parameter %q must be an integer", ErrInvalidArguments, p.Name)
			}
			// float64(math.MaxInt) rounds up to 2^63, so the upper bound is exclusive.
			if n < math.MinInt || n >= math.MaxInt {
				return nil, fmt.Errorf("%w: parameter %q is out of range", ErrInvalidArguments, p.Name)
			}
			return int(n), nil
		default:
			return nil, fmt.Errorf("%w: parameter %q must be an integer", ErrInvalidArguments, p.Name)
		}
	default:
		return v, nil
	}
}

// DecodeArguments parses a JSON object of tool arguments. An empty string
// decodes to an empty map.
func DecodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: arguments are not a JSON object: %v", ErrInvalidArguments, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
