// Package session owns the live sessions of a node. A session is created
// when an authenticated client opens the event stream and ends when the
// stream goes away, when it is closed explicitly or when it expires.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	ReasonClientGone = "client disconnected"
	ReasonWriteFail  = "stream write failed"
	ReasonExpired    = "expired"
	ReasonShutdown   = "server shutdown"
)

// Observer is told about every session that opens and closes.
type Observer interface {
	SessionOpened(s *Session)
	SessionClosed(s *Session, reason string)
}

type RegistryContract interface {
	Open(identity auth.Identity) (*Session, error)
	Lookup(id string) (*Session, bool)
	Close(id, reason string) bool
	Len() int
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl       time.Duration
	log       *slog.Logger
	clock     clockwork.Clock
	observers []Observer
}

type Option func(*Registry)

func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observers = append(r.observers, o) }
}

// New creates an empty registry. Sessions older than ttl are closed by
// the cleanup loop; ttl <= 0 lets them live until the stream ends.
func New(ttl time.Duration, log *slog.Logger, opts ...Option) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open registers a new session for identity under a fresh random id.
func (r *Registry) Open(identity auth.Identity) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	s := newSession(id.String(), identity, r.clock.Now())

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.log.Debug("session opened", slog.String("session-uuid", s.ID), slog.String("subject", identity.Subject))
	for _, o := range r.observers {
		o.SessionOpened(s)
	}
	return s, nil
}

func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close removes the session and ends it. Closing an unknown or already
// closed session is a no-op that returns false.
func (r *Registry) Close(id, reason string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok || !s.close(reason) {
		return false
	}

	r.log.Debug("session closed", slog.String("session-uuid", id), slog.String("reason", reason))
	for _, o := range r.observers {
		o.SessionClosed(s, reason)
	}
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll ends every session, used on shutdown.
func (r *Registry) CloseAll(reason string) int {
	n := 0
	for _, id := range r.ids() {
		if r.Close(id, reason) {
			n++
		}
	}
	return n
}

func (r *Registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Expire closes every session older than the ttl and returns how many it
// closed.
func (r *Registry) Expire() int {
	if r.ttl <= 0 {
		return 0
	}
	now := r.clock.Now()
	var stale []string
	r.mu.RLock()
	for id, s := range r.sessions {
		if now.Sub(s.CreatedAt) >= r.ttl {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if r.Close(id, ReasonExpired) {
			n++
		}
	}
	return n
}

// StartCleanup expires sessions every interval until ctx is done.
func (r *Registry) StartCleanup(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := r.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if n := r.Expire(); n > 0 {
					r.log.Info("expired sessions closed", slog.Int("count", n))
				}
			}
		}
	}()
}
