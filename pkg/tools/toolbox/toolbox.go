package toolbox

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// ToolBox is a registry of tools. Frontends (the MCP server, the CLI) list
// and call tools through it.
type ToolBox struct {
	tools map[string]Tool
}

// New creates a new ToolBox ready for use.
func New() *ToolBox {
	return &ToolBox{
		tools: make(map[string]Tool),
	}
}

// Register adds one or more tools to the ToolBox. If a tool with the same name
// already exists, it is replaced.
func (tb *ToolBox) Register(tools ...Tool) {
	for _, t := range tools {
		tb.tools[t.Name] = t
	}
}

// Get returns a tool by name and a boolean indicating whether it was found.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Tools returns all registered tools sorted by name.
func (tb *ToolBox) Tools() []Tool {
	result := make([]Tool, 0, len(tb.tools))
	for _, t := range tb.tools {
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b Tool) int { return cmp.Compare(a.Name, b.Name) })
	return result
}

// Call runs a tool and returns its Result. If the tool is not found or the
// handler returns an error, the result has IsError set.
func (tb *ToolBox) Call(ctx context.Context, c Call) Result {
	t, ok := tb.tools[c.Name]
	if !ok {
		return Result{
			CallID:  c.ID,
			Content: fmt.Sprintf("tool not found: %s", c.Name),
			IsError: true,
		}
	}

	args := c.Arguments
	if len(args) == 0 {
		args = []byte("{}")
	}

	result, err := t.Handler(ctx, args)
	if err != nil {
		return Result{
			CallID:  c.ID,
			Content: err.Error(),
			IsError: true,
		}
	}

	return Result{
		CallID:  c.ID,
		Content: result,
	}
}
