// Package tracker correlates outstanding JSON-RPC requests with the
// responses that arrive for them on the event stream.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/server/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/jsonrpc2"
)

var (
	ErrDuplicateID = errors.New("request id is already in flight")
	ErrTimeout     = errors.New("request timed out")
)

// TimeoutError is the outcome of a request that got no response in time.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %q timed out after %s", e.Method, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

type outcome struct {
	result json.RawMessage
	err    error
}

// Pending is one in-flight request. Its outcome is delivered exactly once.
type Pending struct {
	ID     jsonrpc2.ID
	Method string

	key     string
	tracker *Tracker
	timer   clockwork.Timer
	done    chan outcome
}

// Tracker maps request ids to pending entries. Removing an entry from the
// map is what settles it, so of a response, a timer, a rejection and a
// cancellation only the first to remove the entry has any effect.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*Pending
	clock   clockwork.Clock
	nextID  uint64
}

func New(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		pending: make(map[string]*Pending),
		clock:   clock,
	}
}

// NextID issues monotonically increasing numeric ids starting at 1.
func (t *Tracker) NextID() jsonrpc2.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return rpc.NumericID(t.nextID)
}

// Track registers id. A timeout <= 0 disables the timer.
func (t *Tracker) Track(id jsonrpc2.ID, method string, timeout time.Duration) (*Pending, error) {
	key := rpc.IDKey(id)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id.String())
	}
	p := &Pending{
		ID:      id,
		Method:  method,
		key:     key,
		tracker: t,
		done:    make(chan outcome, 1),
	}
	t.pending[key] = p
	if timeout > 0 {
		p.timer = t.clock.AfterFunc(timeout, func() {
			t.settle(key, p, outcome{err: &TimeoutError{Method: method, Timeout: timeout}})
		})
	}
	return p, nil
}

// settle removes the entry and delivers o. It reports false when the entry
// was already gone, or when want is set and is no longer the live entry.
func (t *Tracker) settle(key string, want *Pending, o outcome) bool {
	t.mu.Lock()
	p, ok := t.pending[key]
	if !ok || (want != nil && p != want) {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, key)
	t.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.done <- o
	return true
}

// Resolve settles the entry whose id matches resp. It returns false for
// responses nobody is waiting for.
func (t *Tracker) Resolve(resp *rpc.RPCResponse) bool {
	if resp == nil || resp.ID == nil {
		return false
	}
	o := outcome{result: resp.Result}
	if resp.Error != nil {
		o = outcome{err: resp.Error}
	}
	return t.settle(rpc.IDKey(*resp.ID), nil, o)
}

// Reject settles one entry with err.
func (t *Tracker) Reject(id jsonrpc2.ID, err error) bool {
	return t.settle(rpc.IDKey(id), nil, outcome{err: err})
}

// RejectAll settles every entry with err and clears the map. It returns how
// many entries it rejected.
func (t *Tracker) RejectAll(err error) int {
	t.mu.Lock()
	swept := t.pending
	t.pending = make(map[string]*Pending)
	t.mu.Unlock()

	for _, p := range swept {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.done <- outcome{err: err}
	}
	return len(swept)
}

// Len returns the number of entries still in flight.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Wait blocks until the entry settles. Cancelling ctx rejects the entry
// with ctx's error unless another outcome got there first.
func (p *Pending) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case o := <-p.done:
		return o.result, o.err
	case <-ctx.Done():
		p.tracker.settle(p.key, p, outcome{err: ctx.Err()})
		o := <-p.done
		return o.result, o.err
	}
}
