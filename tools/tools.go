// Package tools defines the tool-side collaborators of the engine: tool
// definitions advertised to providers, a typed wrapper that turns plain Go
// functions into callable tools, and a catalog that doubles as the Tool
// Execution Host.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/turnwire/turnwire/internal/jsonschema"
)

// ErrNotFound is returned by Catalog.Execute for an unknown tool name.
var ErrNotFound = errors.New("tools: tool not found")

// Definition is the provider-facing description of one tool.
type Definition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Host executes a named tool with already-parsed JSON arguments and returns
// its result as a string. Execution failure is reported as an error; the
// engine folds it into the tool turn rather than propagating it.
type Host interface {
	Execute(ctx context.Context, toolName string, args map[string]any) (string, error)
}

// Callable is the catalog-facing interface over a concrete tool.
type Callable interface {
	Definition() Definition
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Tool binds a name and description to a strongly typed Go function. The
// input schema is derived from I by reflection; the output O is serialized
// to JSON (a plain string output is returned verbatim).
type Tool[I, O any] struct {
	name        string
	description string
	parameters  *jsonschema.Schema
	fn          func(ctx context.Context, input I) (O, error)
}

// New constructs a typed tool. It returns an error when the input type
// cannot be expressed as a JSON schema.
func New[I, O any](name, description string, fn func(ctx context.Context, input I) (O, error)) (*Tool[I, O], error) {
	schema, err := jsonschema.For[I]()
	if err != nil {
		return nil, fmt.Errorf("tools: %s: %w", name, err)
	}
	return &Tool[I, O]{name: name, description: description, parameters: schema, fn: fn}, nil
}

// MustNew is New for package-level tool declarations; it panics on schema
// derivation failure, which is always a programming error.
func MustNew[I, O any](name, description string, fn func(ctx context.Context, input I) (O, error)) *Tool[I, O] {
	tool, err := New(name, description, fn)
	if err != nil {
		panic(err)
	}
	return tool
}

func (t *Tool[I, O]) Definition() Definition {
	return Definition{Name: t.name, Description: t.description, Parameters: t.parameters}
}

// Call decodes the argument map into I, invokes the function, and encodes
// the result. Unknown argument keys are ignored, matching the leniency the
// rest of the pipeline applies to model output.
func (t *Tool[I, O]) Call(ctx context.Context, args map[string]any) (string, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("tools: %s: encode arguments: %w", t.name, err)
	}
	var input I
	if err := json.Unmarshal(encoded, &input); err != nil {
		return "", fmt.Errorf("tools: %s: decode arguments: %w", t.name, err)
	}

	output, err := t.fn(ctx, input)
	if err != nil {
		return "", err
	}

	// String outputs go to the model verbatim; everything else as JSON.
	if text, ok := any(output).(string); ok {
		return text, nil
	}
	result, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("tools: %s: encode result: %w", t.name, err)
	}
	return string(result), nil
}
