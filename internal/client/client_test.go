package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/akyaiy/GoSally-stream/internal/client/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	params any
}

type fakeTransport struct {
	results       map[string]string
	err           error
	calls         []call
	notifications []string
}

func (f *fakeTransport) SendRequest(_ context.Context, method string, params any, _ ...transport.CallOption) (json.RawMessage, error) {
	f.calls = append(f.calls, call{method, params})
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.results[method]), nil
}

func (f *fakeTransport) SendNotification(_ context.Context, method string, _ any) error {
	f.notifications = append(f.notifications, method)
	return nil
}

func TestClient_CallTool(t *testing.T) {
	ft := &fakeTransport{results: map[string]string{"tools/call": `{"content":[{"type":"text","text":"hi"}]}`}}
	c := New(ft)

	out, err := c.CallTool(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Contains(t, out, "content")

	require.Len(t, ft.calls, 1)
	assert.Equal(t, "tools/call", ft.calls[0].method)
	assert.Equal(t, map[string]any{"name": "echo", "arguments": map[string]any{"text": "hi"}}, ft.calls[0].params)
}

func TestClient_CallToolWithoutArgs(t *testing.T) {
	ft := &fakeTransport{results: map[string]string{"tools/call": `{}`}}
	_, err := New(ft).CallTool(context.Background(), "clock", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, ft.calls[0].params.(map[string]any)["arguments"])
}

func TestClient_InitializeAnnouncesReady(t *testing.T) {
	ft := &fakeTransport{results: map[string]string{"initialize": `{"serverInfo":{"name":"node"}}`}}
	out, err := New(ft).Initialize(context.Background(), "cli", "v1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "node"}, out["serverInfo"])
	assert.Equal(t, []string{"notifications/initialized"}, ft.notifications)
}

func TestClient_PingNullResult(t *testing.T) {
	ft := &fakeTransport{results: map[string]string{"ping": `null`}}
	assert.NoError(t, New(ft).Ping(context.Background()))
}

func TestClient_ErrorsPassThrough(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(&fakeTransport{err: boom}).ListTools(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestClient_BadResultShape(t *testing.T) {
	ft := &fakeTransport{results: map[string]string{"tools/list": `[1,2]`}}
	_, err := New(ft).ListTools(context.Background())
	assert.Error(t, err)
}
