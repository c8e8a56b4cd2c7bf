package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/server/rpc"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks the stream protocol by hand so tests control exactly
// what arrives on the wire and when.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	streams      []*fakeStream
	tokens       []string
	streamStatus int
	endpoint     func(n int) string
	postStatus   int
	responder    func(st *fakeStream, req *rpc.RPCRequest)

	posts chan *rpc.Message
}

type fakeStream struct {
	events chan string
	gone   chan struct{}
	kill   chan struct{}
}

func (st *fakeStream) push(t *testing.T, frame string) {
	t.Helper()
	select {
	case st.events <- frame:
	case <-time.After(2 * time.Second):
		t.Fatal("stream is not consuming events")
	}
}

func (st *fakeStream) message(t *testing.T, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	st.push(t, "data: "+string(data)+"\n\n")
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{
		t:          t,
		postStatus: http.StatusAccepted,
		endpoint:   func(n int) string { return fmt.Sprintf("/rpc?session=S%d", n) },
		posts:      make(chan *rpc.Message, 64),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sse", fs.handleStream)
	mux.HandleFunc("POST /rpc", fs.handlePost)
	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) handleStream(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.tokens = append(fs.tokens, r.URL.Query().Get("token"))
	status := fs.streamStatus
	st := &fakeStream{events: make(chan string, 16), gone: make(chan struct{}), kill: make(chan struct{})}
	fs.streams = append(fs.streams, st)
	n := len(fs.streams)
	endpoint := fs.endpoint(n)
	fs.mu.Unlock()
	defer close(st.gone)

	if status != 0 {
		http.Error(w, "bad token", status)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	if endpoint != "-" {
		fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint)
	}
	flusher.Flush()

	for {
		select {
		case frame := <-st.events:
			_, _ = io.WriteString(w, frame)
			flusher.Flush()
		case <-st.kill:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (fs *fakeServer) handlePost(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if r.Header.Get("Authorization") == "" {
		http.Error(w, "missing bearer", http.StatusUnauthorized)
		return
	}
	fs.mu.Lock()
	status := fs.postStatus
	responder := fs.responder
	var st *fakeStream
	var n int
	if _, err := fmt.Sscanf(r.URL.Query().Get("session"), "S%d", &n); err == nil && n >= 1 && n <= len(fs.streams) {
		st = fs.streams[n-1]
	}
	fs.mu.Unlock()

	if status != http.StatusAccepted {
		http.Error(w, "denied", status)
		return
	}
	msg, err := rpc.Decode(body)
	if err != nil || st == nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	fs.posts <- msg
	if responder != nil && msg.Kind() == rpc.KindRequest {
		go responder(st, msg.Request())
	}
}

func (fs *fakeServer) set(fn func(fs *fakeServer)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fn(fs)
}

func (fs *fakeServer) seenTokens() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.tokens...)
}

func (fs *fakeServer) stream(n int) *fakeStream {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.streams[n-1]
}

func (fs *fakeServer) nextPost(t *testing.T) *rpc.Message {
	t.Helper()
	select {
	case msg := <-fs.posts:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message was posted")
		return nil
	}
}

func (fs *fakeServer) session(t *testing.T, opts ...Option) (*Session, chan Event) {
	t.Helper()
	s, err := New(fs.srv.URL, opts...)
	require.NoError(t, err)
	events := make(chan Event, 64)
	s.Subscribe(func(ev Event) { events <- ev })
	t.Cleanup(func() { s.Disconnect("test done") })
	return s, events
}

func waitEvent(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
			return Event{}
		}
	}
}

func connect(t *testing.T, s *Session, token string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx, token))
	require.Equal(t, StateReady, s.State())
}

type result struct {
	raw json.RawMessage
	err error
}

func sendAsync(s *Session, method string, params any, opts ...CallOption) <-chan result {
	ch := make(chan result, 1)
	go func() {
		raw, err := s.SendRequest(context.Background(), method, params, opts...)
		ch <- result{raw, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("request never settled")
		return result{}
	}
}

func TestSession_EndToEnd(t *testing.T) {
	fs := newFakeServer(t)
	fs.set(func(fs *fakeServer) {
		fs.responder = func(st *fakeStream, req *rpc.RPCRequest) {
			if req.Method == "tools/list" {
				st.message(t, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"tools": []any{}}})
			}
		}
	})
	s, events := fs.session(t)

	connect(t, s, "tok-A")
	open := waitEvent(t, events, EventOpen)
	assert.Equal(t, fs.srv.URL+"/rpc?session=S1", open.Endpoint)
	assert.Equal(t, fs.srv.URL+"/rpc?session=S1", s.Endpoint())
	assert.Equal(t, []string{"tok-A"}, fs.seenTokens())

	raw, err := s.SendRequest(context.Background(), "tools/list", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tools":[]}`, string(raw))

	posted := fs.nextPost(t)
	assert.Equal(t, rpc.KindRequest, posted.Kind())
	assert.Equal(t, uint64(1), posted.ID.Num)
	assert.Zero(t, s.Pending())
}

func TestSession_ConnectRequiresToken(t *testing.T) {
	fs := newFakeServer(t)
	s, _ := fs.session(t)
	err := s.Connect(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSession_NewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSession_OutOfOrderResponses(t *testing.T) {
	fs := newFakeServer(t)
	s, _ := fs.session(t)
	connect(t, s, "tok-A")

	calls := make([]<-chan result, 3)
	for i := range calls {
		calls[i] = sendAsync(s, "echo", map[string]int{"n": i + 1}, WithID(rpc.NumericID(uint64(i+1))))
	}
	byID := map[uint64]*rpc.Message{}
	for range calls {
		msg := fs.nextPost(t)
		byID[msg.ID.Num] = msg
	}

	st := fs.stream(1)
	for _, id := range []uint64{3, 1, 2} {
		st.message(t, map[string]any{"jsonrpc": "2.0", "id": id, "result": json.RawMessage(byID[id].Params)})
	}

	for i, ch := range calls {
		r := await(t, ch)
		require.NoError(t, r.err)
		assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i+1), string(r.raw))
	}
}

func TestSession_RequestTimeout(t *testing.T) {
	fs := newFakeServer(t)
	s, _ := fs.session(t)
	connect(t, s, "tok-A")

	start := time.Now()
	_, err := s.SendRequest(context.Background(), "slow/method", nil, WithTimeout(50*time.Millisecond))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "slow/method")
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, StateReady, s.State(), "a timeout is not fatal to the session")
}

func TestSession_DisconnectRejectsPending(t *testing.T) {
	fs := newFakeServer(t)
	s, events := fs.session(t)
	connect(t, s, "tok-A")

	calls := []<-chan result{
		sendAsync(s, "a", nil, WithTimeout(0)),
		sendAsync(s, "b", nil, WithTimeout(0)),
		sendAsync(s, "c", nil, WithTimeout(0)),
	}
	require.Eventually(t, func() bool { return s.Pending() == 3 }, 2*time.Second, 5*time.Millisecond)

	s.Disconnect("user left")
	for _, ch := range calls {
		r := await(t, ch)
		var de *DisconnectError
		require.True(t, errors.As(r.err, &de), "got %v", r.err)
		assert.Equal(t, "user left", de.Reason)
	}
	assert.Zero(t, s.Pending())
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, "", s.Endpoint())
	assert.Equal(t, "user left", waitEvent(t, events, EventClose).Reason)

	s.Disconnect("again")
	select {
	case ev := <-events:
		t.Fatalf("unexpected %s event after second disconnect", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}

	_, err := s.SendRequest(context.Background(), "d", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSession_ReconnectTearsDownPrevious(t *testing.T) {
	fs := newFakeServer(t)
	s, _ := fs.session(t)
	connect(t, s, "tok-A")

	first := sendAsync(s, "stuck", nil, WithTimeout(0))
	fs.nextPost(t)

	connect(t, s, "tok-B")
	r := await(t, first)
	var de *DisconnectError
	require.True(t, errors.As(r.err, &de))
	assert.Equal(t, "reconnect", de.Reason)

	select {
	case <-fs.stream(1).gone:
	case <-time.After(2 * time.Second):
		t.Fatal("first stream was not closed")
	}
	assert.Equal(t, fs.srv.URL+"/rpc?session=S2", s.Endpoint())
	assert.Equal(t, []string{"tok-A", "tok-B"}, fs.seenTokens())

	fs.set(func(fs *fakeServer) {
		fs.responder = func(st *fakeStream, req *rpc.RPCRequest) {
			st.message(t, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "fresh"})
		}
	})
	raw, err := s.SendRequest(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"fresh"`, string(raw))
}

func TestSession_MalformedMessageIsNotFatal(t *testing.T) {
	fs := newFakeServer(t)
	s, events := fs.session(t)
	connect(t, s, "tok-A")

	st := fs.stream(1)
	st.push(t, "data: {not json\n\n")
	ev := waitEvent(t, events, EventError)
	assert.ErrorIs(t, ev.Err, rpc.ErrParse)
	assert.Equal(t, StateReady, s.State())

	call := sendAsync(s, "tools/list", nil)
	msg := fs.nextPost(t)
	st.message(t, map[string]any{"jsonrpc": "2.0", "id": msg.ID, "result": map[string]any{"tools": []any{}}})
	r := await(t, call)
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"tools":[]}`, string(r.raw))
}

func TestSession_ErrorResponse(t *testing.T) {
	fs := newFakeServer(t)
	fs.set(func(fs *fakeServer) {
		fs.responder = func(st *fakeStream, req *rpc.RPCRequest) {
			st.message(t, rpc.NewError(rpc.ErrMethodNotFound, rpc.ErrMethodNotFoundS, nil, &req.ID))
		}
	})
	s, _ := fs.session(t)
	connect(t, s, "tok-A")

	_, err := s.SendRequest(context.Background(), "nope", nil)
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.EqualValues(t, rpc.ErrMethodNotFound, rpcErr.Code)
	assert.Equal(t, StateReady, s.State())
}

func TestSession_NotificationsInOrder(t *testing.T) {
	fs := newFakeServer(t)
	s, events := fs.session(t)
	connect(t, s, "tok-A")

	st := fs.stream(1)
	for i := 0; i < 5; i++ {
		st.message(t, map[string]any{"jsonrpc": "2.0", "method": "progress", "params": map[string]int{"step": i}})
	}
	for i := 0; i < 5; i++ {
		ev := waitEvent(t, events, EventNotification)
		assert.Equal(t, "progress", ev.Notification.Method)
		assert.JSONEq(t, fmt.Sprintf(`{"step":%d}`, i), string(ev.Notification.Params))
	}
}

func TestSession_SecondEndpointIgnored(t *testing.T) {
	fs := newFakeServer(t)
	s, events := fs.session(t)
	connect(t, s, "tok-A")

	st := fs.stream(1)
	st.push(t, "event: endpoint\ndata: /elsewhere?session=X\n\n")
	st.message(t, map[string]any{"jsonrpc": "2.0", "method": "marker"})
	waitEvent(t, events, EventNotification)

	assert.Equal(t, fs.srv.URL+"/rpc?session=S1", s.Endpoint())
	assert.Equal(t, StateReady, s.State())
}

func TestSession_ServerRequestIsDropped(t *testing.T) {
	fs := newFakeServer(t)
	s, events := fs.session(t)
	connect(t, s, "tok-A")

	st := fs.stream(1)
	st.message(t, map[string]any{"jsonrpc": "2.0", "id": 5, "method": "sampling/create"})
	st.message(t, map[string]any{"jsonrpc": "2.0", "method": "marker"})
	ev := waitEvent(t, events, EventNotification)
	assert.Equal(t, "marker", ev.Notification.Method)
	assert.Equal(t, StateReady, s.State())
}

func TestSession_EmptyEndpointFailsConnect(t *testing.T) {
	fs := newFakeServer(t)
	fs.set(func(fs *fakeServer) { fs.endpoint = func(int) string { return "" } })
	s, _ := fs.session(t)

	err := s.Connect(context.Background(), "tok-A")
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_StreamRejected(t *testing.T) {
	fs := newFakeServer(t)
	fs.set(func(fs *fakeServer) { fs.streamStatus = http.StatusUnauthorized })
	s, events := fs.session(t)

	err := s.Connect(context.Background(), "tok-bad")
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "bad token", se.Body)
	assert.Equal(t, StateClosed, s.State())
	waitEvent(t, events, EventError)
}

func TestSession_ConnectCancelled(t *testing.T) {
	fs := newFakeServer(t)
	fs.set(func(fs *fakeServer) { fs.endpoint = func(int) string { return "-" } })
	s, _ := fs.session(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Connect(ctx, "tok-A")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_StreamLossIsFatal(t *testing.T) {
	fs := newFakeServer(t)
	s, events := fs.session(t)
	connect(t, s, "tok-A")

	call := sendAsync(s, "hang", nil, WithTimeout(0))
	fs.nextPost(t)
	close(fs.stream(1).kill)

	r := await(t, call)
	assert.ErrorIs(t, r.err, ErrDisconnected)
	assert.ErrorIs(t, r.err, ErrStreamClosed)

	errEv := waitEvent(t, events, EventError)
	assert.ErrorIs(t, errEv.Err, ErrStreamClosed)
	waitEvent(t, events, EventClose)
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_PostFailureRejectsOnlyThatCall(t *testing.T) {
	fs := newFakeServer(t)
	s, _ := fs.session(t)
	connect(t, s, "tok-A")

	fs.set(func(fs *fakeServer) { fs.postStatus = http.StatusForbidden })

	_, err := s.SendRequest(context.Background(), "tools/list", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.True(t, strings.Contains(se.Body, "denied"))
	assert.Zero(t, s.Pending())
	assert.Equal(t, StateReady, s.State())

	err = s.SendNotification(context.Background(), "notifications/cancelled", nil)
	assert.Error(t, err)
}

func TestSession_DuplicateCallerID(t *testing.T) {
	fs := newFakeServer(t)
	s, _ := fs.session(t)
	connect(t, s, "tok-A")

	first := sendAsync(s, "a", nil, WithID(rpc.StringID("same")), WithTimeout(0))
	fs.nextPost(t)

	_, err := s.SendRequest(context.Background(), "b", nil, WithID(rpc.StringID("same")))
	assert.ErrorIs(t, err, ErrDuplicateID)

	s.Disconnect("done")
	assert.ErrorIs(t, await(t, first).err, ErrDisconnected)
}

func TestSession_SendNotification(t *testing.T) {
	fs := newFakeServer(t)
	s, _ := fs.session(t)
	connect(t, s, "tok-A")

	require.NoError(t, s.SendNotification(context.Background(), "notifications/initialized", nil))
	msg := fs.nextPost(t)
	assert.Equal(t, rpc.KindNotification, msg.Kind())
	assert.Zero(t, s.Pending())
}
