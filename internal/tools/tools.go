// Package tools defines the tools available to the agent and the
// dispatcher that executes them. Dispatch never returns an error to
// the caller: every fault — unknown tool, bad arguments, handler
// failure, even a panic — becomes a Result the model can read and
// react to.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"
)

// ErrDuplicateTool is returned by Register when a tool name is already taken.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (map[string]any, error) `json:"-"`
}

// Result is the outcome of one tool dispatch. Fields carries the
// tool-specific payload; it is merged flat into the JSON alongside
// success and error.
type Result struct {
	Success bool
	Fields  map[string]any
	Error   string
}

// Fail builds a failure Result with the given error text.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Ok builds a success Result carrying the given payload.
func Ok(fields map[string]any) Result {
	return Result{Success: true, Fields: fields}
}

// JSON renders the result as the flat payload the model receives.
// encoding/json sorts map keys, so the output is deterministic for a
// given result.
func (r Result) JSON() string {
	payload := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		payload[k] = v
	}
	payload["success"] = r.Success
	if r.Error != "" {
		payload["error"] = r.Error
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Unserializable handler payload. Report it instead of crashing.
		data, _ = json.Marshal(map[string]any{
			"success": false,
			"error":   fmt.Sprintf("result serialization failed: %v", err),
		})
	}
	return string(data)
}

// Registry holds available tools in registration order.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.With("component", "tools"),
	}
}

// Register adds a tool to the registry. Names must be unique.
func (r *Registry) Register(t *Tool) error {
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get retrieves a tool by name, or nil if unknown.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List returns all tools as OpenAI-style function schemas, in
// registration order.
func (r *Registry) List() []map[string]any {
	var result []map[string]any
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Dispatch runs a tool by name with the given raw argument JSON.
/// It never returns an error: faults become failure Results so the
// orchestration loop can hand them back to the model.
func (r *Registry) Dispatch(ctx context.Context, name, argsJSON string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool handler panicked", "tool", name, "panic", p)
			res = Fail(fmt.Sprintf("tool %s panicked: %v", name, p))
		}
	}()

	tool := r.tools[name]
	if tool == nil {
		return Fail(fmt.Sprintf("Unknown tool: %s", name))
	}

	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return Fail(fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	fields, err := tool.Handler(ctx, args)
	if err != nil {
		return Result{Success: false, Fields: fields, Error: err.Error()}
	}
	return Ok(fields)
}

// DispatchArgs is Dispatch for arguments that are already decoded.
func (r *Registry) DispatchArgs(ctx context.Context, name string, args map[string]any) Result {
	data, err := json.Marshal(args)
	if err != nil {
		return Fail(fmt.Sprintf("invalid arguments: %v", err))
	}
	return r.Dispatch(ctx, name, string(data))
}

// BindArgs decodes a raw argument map into a typed parameter struct.
// Weak typing tolerates the loose JSON models produce ("5" for 5,
// 1.0 for 1).
func BindArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
