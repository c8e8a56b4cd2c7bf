package tools

import (
	"context"

	"github.com/akyaiy/GoSally-stream/internal/server/auth"
)

type HandlerFunc func(ctx context.Context, caller auth.Identity, args map[string]any) (any, error)

type funcTool struct {
	name        string
	description string
	schema      map[string]any
	fn          HandlerFunc
}

// Func wraps a Go function as a tool that accepts any object.
func Func(name, description string, fn HandlerFunc) Tool {
	return &funcTool{name: name, description: description, fn: fn}
}

// FuncWithSchema is Func with an explicit JSON schema for the arguments.
func FuncWithSchema(name, description string, schema map[string]any, fn HandlerFunc) Tool {
	return &funcTool{name: name, description: description, schema: schema, fn: fn}
}

func (f *funcTool) Name() string        { return f.name }
func (f *funcTool) Description() string { return f.description }

func (f *funcTool) InputSchema() map[string]any {
	if f.schema != nil {
		return f.schema
	}
	return objectSchema()
}

func (f *funcTool) Call(ctx context.Context, caller auth.Identity, args map[string]any) (any, error) {
	return f.fn(ctx, caller, args)
}

func objectSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Builtins are the tools every node has.
func Builtins(info ServerInfo) []Tool {
	return []Tool{
		Func("echo", "Returns its arguments unchanged", func(_ context.Context, _ auth.Identity, args map[string]any) (any, error) {
			return args, nil
		}),
		Func("whoami", "Returns the identity that owns the calling session", func(_ context.Context, caller auth.Identity, _ map[string]any) (any, error) {
			return map[string]any{"subject": caller.Subject, "issuer": caller.Issuer, "node": info.NodeID}, nil
		}),
	}
}
