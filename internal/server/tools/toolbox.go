// Package tools is the dispatcher behind the gateway: it answers the
// handshake and lists and runs the tools registered on the node.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/rpc"
	"github.com/sourcegraph/jsonrpc2"
)

const ProtocolVersion = "2024-11-05"

// AllowedName is what a tool name may look like.
var AllowedName = regexp.MustCompile(`^[a-zA-Z0-9]+(?:[._-][a-zA-Z0-9]+)*$`)

// Tool is one callable unit of business logic.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Call(ctx context.Context, caller auth.Identity, args map[string]any) (any, error)
}

type ServerInfo struct {
	Name    string
	Version string
	NodeID  string
}

type Toolbox struct {
	mu    sync.RWMutex
	tools map[string]Tool

	info ServerInfo
	log  *slog.Logger
}

func New(info ServerInfo, log *slog.Logger) *Toolbox {
	if log == nil {
		log = slog.Default()
	}
	return &Toolbox{
		tools: make(map[string]Tool),
		info:  info,
		log:   log,
	}
}

// Register adds tools. Names must be valid and unique.
func (tb *Toolbox) Register(tools ...Tool) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for _, t := range tools {
		name := t.Name()
		if !AllowedName.MatchString(name) {
			return fmt.Errorf("invalid tool name %q", name)
		}
		if _, ok := tb.tools[name]; ok {
			return fmt.Errorf("tool %q is already registered", name)
		}
		tb.tools[name] = t
	}
	return nil
}

func (tb *Toolbox) Len() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return len(tb.tools)
}

func (tb *Toolbox) lookup(name string) (Tool, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	t, ok := tb.tools[name]
	return t, ok
}

func (tb *Toolbox) sorted() []Tool {
	tb.mu.RLock()
	out := make([]Tool, 0, len(tb.tools))
	for _, t := range tb.tools {
		out = append(out, t)
	}
	tb.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (tb *Toolbox) Dispatch(ctx context.Context, caller auth.Identity, req *rpc.RPCRequest) (any, error) {
	switch req.Method {
	case "initialize":
		return tb.handleInitialize(req.Params), nil
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return tb.handleToolsList(), nil
	case "tools/call":
		return tb.handleToolCall(ctx, caller, req.Params)
	}
	tb.log.Info("invalid request received", slog.String("issue", rpc.ErrMethodNotFoundS), slog.String("requested-method", req.Method))
	return nil, &jsonrpc2.Error{Code: rpc.ErrMethodNotFound, Message: rpc.ErrMethodNotFoundS}
}

func (tb *Toolbox) Notify(_ context.Context, caller auth.Identity, n *rpc.RPCNotification) {
	tb.log.Debug("notification received", slog.String("method", n.Method), slog.String("subject", caller.Subject))
}

func (tb *Toolbox) handleInitialize(params json.RawMessage) map[string]any {
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}
	_ = json.Unmarshal(params, &p)
	if p.ClientInfo.Name != "" {
		tb.log.Debug("client initialized", slog.String("client", p.ClientInfo.Name), slog.String("client-version", p.ClientInfo.Version))
	}
	version := ProtocolVersion
	if p.ProtocolVersion != "" {
		version = p.ProtocolVersion
	}
	return map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    tb.info.Name,
			"version": tb.info.Version,
			"node":    tb.info.NodeID,
		},
	}
}

func (tb *Toolbox) handleToolsList() map[string]any {
	tools := make([]map[string]any, 0)
	for _, t := range tb.sorted() {
		tools = append(tools, map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"inputSchema": t.InputSchema(),
		})
	}
	return map[string]any{"tools": tools}
}

func (tb *Toolbox) handleToolCall(ctx context.Context, caller auth.Identity, params json.RawMessage) (any, error) {
	var p struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if len(params) == 0 {
		return nil, invalidParams("missing params")
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err.Error())
	}
	if p.Name == "" {
		return nil, invalidParams("missing 'name' parameter")
	}
	tool, ok := tb.lookup(p.Name)
	if !ok {
		return nil, invalidParams("tool not found: " + p.Name)
	}
	if p.Arguments == nil {
		p.Arguments = map[string]any{}
	}

	out, err := tool.Call(ctx, caller, p.Arguments)
	if err != nil {
		return nil, toolError(err)
	}
	return content(out), nil
}

func invalidParams(detail string) *jsonrpc2.Error {
	e := &jsonrpc2.Error{Code: rpc.ErrInvalidParams, Message: rpc.ErrInvalidParamsS}
	e.SetError(detail)
	return e
}

// toolError keeps JSON-RPC errors raised by a tool and wraps the rest.
func toolError(err error) error {
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return &jsonrpc2.Error{Code: rpc.ErrToolFailed, Message: err.Error()}
}

// content renders a tool result as text content plus the structured value.
func content(out any) map[string]any {
	var text string
	switch v := out.(type) {
	case string:
		text = v
	case nil:
		text = ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			text = fmt.Sprint(v)
		} else {
			text = string(data)
		}
	}
	result := map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
	}
	if out != nil {
		result["structuredContent"] = out
	}
	return result
}
