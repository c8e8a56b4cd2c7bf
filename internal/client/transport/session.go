// Package transport is the client side of the stream transport: it opens
// the event stream, waits for the server to announce where messages must
// be POSTed, and correlates the responses pushed back on the stream with
// the requests that caused them.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/akyaiy/GoSally-stream/internal/client/tracker"
	"github.com/akyaiy/GoSally-stream/internal/server/rpc"
	"github.com/sourcegraph/jsonrpc2"
	sse "github.com/tmaxmax/go-sse"
)

type Session struct {
	opts      options
	log       *slog.Logger
	streamURL *url.URL
	tracker   *tracker.Tracker
	bus       *bus

	mu           sync.Mutex
	state        State
	gen          uint64
	token        string
	endpoint     *url.URL
	stopStream   context.CancelFunc
	outbound     context.Context
	stopOutbound context.CancelFunc
	connectDone  chan error
}

// New prepares a session against the server at baseURL. Nothing is dialled
// until Connect.
func New(baseURL string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %w", ErrInvalidArgument, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: base url must be http or https, got %q", ErrInvalidArgument, baseURL)
	}
	streamRef, err := url.Parse(o.streamPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stream path: %w", ErrInvalidArgument, err)
	}

	return &Session{
		opts:      o,
		log:       o.log.With(slog.String("component", "transport")),
		streamURL: base.ResolveReference(streamRef),
		tracker:   tracker.New(o.clock),
		bus:       newBus(),
		state:     StateDisconnected,
	}, nil
}

// Connect opens a new stream authenticated by token and blocks until the
// server announces the message endpoint. A previous connection is torn
// down first.
func (s *Session) Connect(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidArgument)
	}

	s.mu.Lock()
	s.token = token
	events := s.apply(inConnect{})
	done := s.connectDone
	gen := s.gen
	s.mu.Unlock()
	s.bus.publish(events...)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.mu.Lock()
		if s.gen == gen {
			events = s.apply(inDisconnect{reason: "connect cancelled"})
		} else {
			events = nil
		}
		s.mu.Unlock()
		s.bus.publish(events...)
		return ctx.Err()
	}
}

// Disconnect closes the stream, aborts in-flight POSTs and rejects every
// pending request with a DisconnectError carrying reason.
func (s *Session) Disconnect(reason string) {
	s.mu.Lock()
	events := s.apply(inDisconnect{reason: reason})
	s.mu.Unlock()
	s.bus.publish(events...)
}

// SendRequest posts a request and waits for its response on the stream.
// The error is a *jsonrpc2.Error when the server answered with one.
func (s *Session) SendRequest(ctx context.Context, method string, params any, opts ...CallOption) (json.RawMessage, error) {
	call := callOptions{timeout: s.opts.requestTimeout}
	for _, opt := range opts {
		opt(&call)
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	id := s.idFor(call)
	req, err := rpc.NewRequest(id, method, params)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	pending, err := s.tracker.Track(id, method, call.timeout)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	endpoint, token, outbound := s.endpoint, s.token, s.outbound
	s.mu.Unlock()

	body, err := rpc.Encode(req)
	if err == nil {
		err = s.post(ctx, outbound, endpoint, token, body)
	}
	if err != nil {
		s.tracker.Reject(id, err)
	}
	return pending.Wait(ctx)
}

func (s *Session) idFor(call callOptions) jsonrpc2.ID {
	if call.id != nil {
		return *call.id
	}
	return s.tracker.NextID()
}

// SendNotification posts a notification. Nothing waits for an answer.
func (s *Session) SendNotification(ctx context.Context, method string, params any) error {
	n, err := rpc.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	body, err := rpc.Encode(n)
	if err != nil {
		return err
	}
	return s.Send(ctx, body)
}

// Send posts an already encoded message without tracking it.
func (s *Session) Send(ctx context.Context, raw []byte) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNotConnected
	}
	endpoint, token, outbound := s.endpoint, s.token, s.outbound
	s.mu.Unlock()
	return s.post(ctx, outbound, endpoint, token, raw)
}

// Subscribe attaches a listener. Listeners run on the goroutine that
// produced the event and must not block.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	return s.bus.subscribe(fn)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Endpoint is the discovered message URL, or "" when not ready.
func (s *Session) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endpoint == nil {
		return ""
	}
	return s.endpoint.String()
}

// Pending is the number of requests waiting for a response.
func (s *Session) Pending() int {
	return s.tracker.Len()
}

// apply runs one transition and its effects. s.mu must be held; the
// returned events are published by the caller after unlocking.
func (s *Session) apply(in input) []Event {
	from := s.state
	next, effects := transition(from, in)
	s.state = next
	if from != next {
		s.log.Debug("session state changed", slog.String("from", from.String()), slog.String("to", next.String()))
	}

	var events []Event
	for _, eff := range effects {
		switch eff := eff.(type) {
		case effOpenStream:
			s.openStream()
		case effCloseStream:
			s.closeStream()
		case effSetEndpoint:
			s.endpoint = eff.url
		case effCompleteConnect:
			if s.connectDone != nil {
				s.connectDone <- eff.err
				s.connectDone = nil
			}
		case effRejectPending:
			if n := s.tracker.RejectAll(eff.err); n > 0 {
				s.log.Debug("rejected pending requests", slog.Int("count", n), slog.String("reason", eff.err.Error()))
			}
		case effEmit:
			events = append(events, eff.ev)
		case effIgnore:
			s.log.Warn("ignoring "+eff.what, slog.String("state", from.String()))
		}
	}
	return events
}

func (s *Session) openStream() {
	s.gen++
	streamCtx, stopStream := context.WithCancel(context.Background())
	s.stopStream = stopStream
	s.outbound, s.stopOutbound = context.WithCancel(context.Background())
	s.connectDone = make(chan error, 1)
	go s.runStream(streamCtx, s.gen, s.token)
}

func (s *Session) closeStream() {
	if s.stopStream != nil {
		s.stopStream()
		s.stopStream = nil
	}
	if s.stopOutbound != nil {
		s.stopOutbound()
		s.stopOutbound = nil
	}
	s.endpoint = nil
}

// input feeds a transition coming from the stream of generation gen.
// Inputs from a superseded stream are dropped.
func (s *Session) input(gen uint64, in input) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	events := s.apply(in)
	s.mu.Unlock()
	s.bus.publish(events...)
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen && (s.state == StateConnecting || s.state == StateReady)
}

func (s *Session) runStream(ctx context.Context, gen uint64, token string) {
	u := *s.streamURL
	q := u.Query()
	q.Set(s.opts.tokenParam, token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		s.input(gen, inStreamError{err: fmt.Errorf("build stream request: %w", err)})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.opts.httpClient.Do(req)
	if err != nil {
		s.input(gen, inStreamError{err: fmt.Errorf("open stream: %w", err)})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.input(gen, inStreamError{err: statusError(resp)})
		return
	}

	for ev, err := range sse.Read(resp.Body, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
		if err != nil {
			s.input(gen, inStreamError{err: fmt.Errorf("read stream: %w", err)})
			return
		}
		s.handleEvent(gen, ev)
	}
	s.input(gen, inStreamError{err: ErrStreamClosed})
}

func (s *Session) handleEvent(gen uint64, ev sse.Event) {
	switch ev.Type {
	case "endpoint":
		s.input(gen, s.parseEndpoint(ev.Data))
	case "", "message":
		s.handleMessage(gen, []byte(ev.Data))
	default:
		s.log.Debug("ignoring unknown event", slog.String("event", ev.Type))
	}
}

func (s *Session) parseEndpoint(data string) input {
	data = strings.TrimSpace(data)
	if data == "" {
		return inEndpointInvalid{err: ErrEmptyEndpoint}
	}
	ref, err := url.Parse(data)
	if err != nil {
		return inEndpointInvalid{err: fmt.Errorf("parse endpoint %q: %w", data, err)}
	}
	return inEndpoint{url: s.streamURL.ResolveReference(ref)}
}

func (s *Session) handleMessage(gen uint64, data []byte) {
	if !s.current(gen) {
		return
	}
	msg, err := rpc.Decode(data)
	if err == nil {
		err = msg.Validate()
	}
	if err != nil {
		s.log.Debug("dropping malformed message", slog.String("err", err.Error()))
		s.bus.publish(Event{Kind: EventError, Err: fmt.Errorf("decode message: %w", err)})
		return
	}

	switch msg.Kind() {
	case rpc.KindResponse:
		if !s.tracker.Resolve(msg.Response()) {
			s.log.Debug("dropping response for unknown request", slog.String("id", msg.ID.String()))
		}
	case rpc.KindNotification:
		s.bus.publish(Event{Kind: EventNotification, Notification: msg.Notification()})
	case rpc.KindRequest:
		s.log.Warn("dropping server-initiated request", slog.String("method", msg.Method))
	}
}

// post delivers one message. It is aborted by ctx or by the session going
// down, whichever comes first.
func (s *Session) post(ctx, outbound context.Context, endpoint *url.URL, token string, body []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(outbound, cancel)
	defer stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.opts.httpClient.Do(req)
	if err != nil {
		if outbound.Err() != nil {
			return fmt.Errorf("%w: %w", ErrDisconnected, err)
		}
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
