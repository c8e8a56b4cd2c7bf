package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/server/auth"
)

var ErrClosed = errors.New("session is closed")

const outboundQueue = 64

// Session is one open event stream and the identity that opened it.
// Messages queued with Send are written to the stream by its handler.
type Session struct {
	ID        string
	Identity  auth.Identity
	CreatedAt time.Time

	out       chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	reason    string
}

func newSession(id string, identity auth.Identity, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        id,
		Identity:  identity,
		CreatedAt: now,
		out:       make(chan []byte, outboundQueue),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Send queues payload for the stream. It blocks while the queue is full
// and fails once the session is closed.
func (s *Session) Send(ctx context.Context, payload []byte) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case s.out <- payload:
		return nil
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outbound is drained by the stream handler.
func (s *Session) Outbound() <-chan []byte {
	return s.out
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Context lives as long as the session. Work started on behalf of the
// session uses it so that closing the session cancels the work.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Reason is why the session was closed, or "" while it is open.
func (s *Session) Reason() string {
	select {
	case <-s.ctx.Done():
		return s.reason
	default:
		return ""
	}
}

func (s *Session) close(reason string) bool {
	closed := false
	s.closeOnce.Do(func() {
		s.reason = reason
		s.cancel()
		closed = true
	})
	return closed
}
