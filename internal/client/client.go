// Package client offers typed calls on top of a stream transport session.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akyaiy/GoSally-stream/internal/client/transport"
)

// Transport is the part of transport.Session the client needs.
type Transport interface {
	SendRequest(ctx context.Context, method string, params any, opts ...transport.CallOption) (json.RawMessage, error)
	SendNotification(ctx context.Context, method string, params any) error
}

// Client represents a tool client bound to one transport session
type Client struct {
	Transport Transport
}

// New creates a client over an existing transport
func New(t Transport) *Client {
	return &Client{Transport: t}
}

// Dial creates a session against baseURL, connects it with token and
// wraps it in a client. Close the returned session when done.
func Dial(ctx context.Context, baseURL, token string, opts ...transport.Option) (*Client, *transport.Session, error) {
	sess, err := transport.New(baseURL, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := sess.Connect(ctx, token); err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", baseURL, err)
	}
	return New(sess), sess, nil
}

// Execute sends method and decodes the result into a map
func (c *Client) Execute(ctx context.Context, method string, params any) (map[string]any, error) {
	raw, err := c.Transport.SendRequest(ctx, method, params)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return out, nil
}

// Initialize performs the handshake and announces the client as ready
func (c *Client) Initialize(ctx context.Context, clientName, clientVersion string) (map[string]any, error) {
	params := map[string]any{
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
		"capabilities": map[string]any{},
	}
	result, err := c.Execute(ctx, "initialize", params)
	if err != nil {
		return nil, err
	}
	if err := c.Transport.SendNotification(ctx, "notifications/initialized", nil); err != nil {
		return nil, fmt.Errorf("announce initialized: %w", err)
	}
	return result, nil
}

// Ping checks the server is answering on this session
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Execute(ctx, "ping", nil)
	return err
}

// ListTools lists all tools exposed by the server
func (c *Client) ListTools(ctx context.Context) (map[string]any, error) {
	return c.Execute(ctx, "tools/list", nil)
}

// CallTool calls a specific tool on the server
func (c *Client) CallTool(ctx context.Context, toolName string, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	params := map[string]any{
		"name":      toolName,
		"arguments": args,
	}
	return c.Execute(ctx, "tools/call", params)
}
