package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nao1215/webterm/internal/model"
)

// Call is one invocation requested by the model.
type Call struct {
	// ID correlates the call with its result in the transcript.
	ID string

	// Name selects the tool.
	Name string

	// Arguments is the raw JSON object produced by the model.
	Arguments json.RawMessage

	// Tree is the caller's working tree. Invoke keeps it for NeedsTree tools only.
	Tree *model.SiteTree
}

// Result is what a handler produced.
type Result struct {
	// Output is the text fed back to the model.
	Output string

	// Tree, when non-nil, replaces the caller's working tree. It may come
	// with an error, as the partial tree of a crawl that was cut short.
	Tree *model.SiteTree
}

// Handler executes one tool call.
type Handler func(ctx context.Context, call Call) (Result, error)

// Tool is one entry of the catalog.
type Tool struct {
	Name        string
	Description string
	Parameters  Schema

	// NeedsTree tools receive the caller's working tree in Call.Tree.
	NeedsTree bool

	Handler Handler
}

// Registry resolves tool names to tools. It is immutable after construction
// and safe for concurrent use.
type Registry struct {
	tools map[string]Tool
	names []string
}

// NewRegistry builds a registry. Tool names must be unique.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if _, ok := r.tools[tool.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
		}
		r.tools[tool.Name] = tool
		r.names = append(r.names, tool.Name)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	if tool.Handler == nil {
		return Tool{}, fmt.Errorf("%w: %q", ErrToolNotCallable, name)
	}
	return tool, nil
}

// Invoke resolves call.Name and runs the handler.
// Call.Tree is passed on to NeedsTree tools only; other tools see nil.
func (r *Registry) Invoke(ctx context.Context, call Call) (Result, error) {
	tool, err := r.Lookup(call.Name)
	if err != nil {
		return Result{}, err
	}
	if !tool.NeedsTree {
		call.Tree = nil
	}
	return tool.Handler(ctx, call)
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Definitions returns the strict schemas of all tools, sorted by name.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, Definition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters.JSON(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// decodeArgs unmarshals call arguments into v. Empty arguments decode as {}.
func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err) //nolint:errorlint // only the sentinel is matched
	}
	return nil
}
