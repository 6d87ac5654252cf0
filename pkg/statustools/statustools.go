// Package statustools exposes status.Session operations as toolbox tools so
// MCP clients and the CLI can call them with JSON input.
package statustools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
	"github.com/germanamz/nestbridge/pkg/status"
	"github.com/germanamz/nestbridge/pkg/tools/toolbox"
)

var handlesSchema = json.RawMessage(`{
	"description": "Node ids such as [1,2,3], or connections as [[source,target,target_thread,synapse_modelid,port], ...] or objects with those fields",
	"type": "array"
}`)

type setInput struct {
	Handles any `json:"handles"`
	Params  any `json:"params"`
	Val     any `json:"val"`
}

type getInput struct {
	Handles any `json:"handles"`
	Keys    any `json:"keys"`
}

type execInput struct {
	Code string `json:"code"`
}

// Tools returns a toolbox with the set_status and get_status tools bound to s.
func Tools(s *status.Session) *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(
		toolbox.Tool{
			Name:        "set_status",
			Description: "Set parameters on many nodes or connections in one interpreter call. params is a dictionary applied to all, a list with one dictionary per handle, or a parameter name combined with val (a single value or one value per handle).",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"handles": %s,
					"params": {"description": "Dictionary, list of dictionaries, or parameter name"},
					"val": {"description": "Value or per-handle list of values when params is a name"}
				},
				"required": ["handles", "params"]
			}`),
			Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in setInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				h, err := handles.Parse(in.Handles)
				if err != nil {
					return "", err
				}
				if err := s.SetStatusAny(ctx, h, in.Params, in.Val); err != nil {
					return "", err
				}
				return fmt.Sprintf("updated %d %s(s)", h.Len(), h.Kind()), nil
			},
		},
		toolbox.Tool{
			Name:        "get_status",
			Description: "Read the status of many nodes or connections in one interpreter call. Without keys each entry is the full status dictionary; a single key yields one value per handle; a list of keys yields one list of values per handle in key order.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"handles": %s,
					"keys": {"description": "Parameter name or list of parameter names"}
				},
				"required": ["handles"]
			}`),
			Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in getInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				h, err := handles.Parse(in.Handles)
				if err != nil {
					return "", err
				}
				reply, err := s.GetStatusAny(ctx, h, in.Keys)
				if err != nil {
					return "", err
				}
				if h.Len() == 0 {
					return encode(reply.Handles)
				}
				return encode(reply.Values)
			},
		},
	)
	return tb
}

// ExecTool returns a tool that runs raw SLI code on exec and returns what it
// printed. It bypasses the status layer and its stack discipline.
func ExecTool(exec sli.Executor) toolbox.Tool {
	return toolbox.Tool{
		Name:        "sli_exec",
		Description: "Run raw SLI code on the interpreter and return what == printed.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"code":{"type":"string"}},"required":["code"]}`),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in execInput
			if err := decode(input, &in); err != nil {
				return "", err
			}
			if in.Code == "" {
				return "", errors.New("statustools: code is required")
			}
			return exec.Exec(ctx, in.Code)
		},
	}
}

func schema(tmpl string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(tmpl, handlesSchema))
}

// decode unmarshals tool input keeping numbers as json.Number so integer
// handles and integer parameters stay integers.
func decode(input json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("statustools: invalid input: %w", err)
	}
	return nil
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("statustools: encode result: %w", err)
	}
	return string(data), nil
}
