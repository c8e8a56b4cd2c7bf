package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/session"
)

const (
	DefaultStreamPath   = "/sse"
	DefaultMessagePath  = "/rpc"
	DefaultTokenParam   = "token"
	DefaultKeepAlive    = 15 * time.Second
	DefaultCallTimeout  = 30 * time.Second
	DefaultMaxBodyBytes = 4 << 20
)

type Options struct {
	StreamPath   string
	MessagePath  string
	TokenParam   string
	KeepAlive    time.Duration
	CallTimeout  time.Duration
	MaxBodyBytes int64
}

func (o *Options) setDefaults() {
	if o.StreamPath == "" {
		o.StreamPath = DefaultStreamPath
	}
	if o.MessagePath == "" {
		o.MessagePath = DefaultMessagePath
	}
	if o.TokenParam == "" {
		o.TokenParam = DefaultTokenParam
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// GatewayServerInit structure only for initialization of the gateway.
type GatewayServerInit struct {
	Log        *slog.Logger
	Registry   session.RegistryContract
	Auth       auth.Authenticator
	Dispatcher Dispatcher
	Options    Options
}

// InitGateway builds a gateway from its collaborators.
func InitGateway(o *GatewayServerInit) *GatewayServer {
	log := o.Log
	if log == nil {
		log = slog.Default()
	}
	opts := o.Options
	opts.setDefaults()
	return &GatewayServer{
		registry:   o.Registry,
		auth:       o.Auth,
		dispatcher: o.Dispatcher,
		opts:       opts,
		log:        log,
	}
}

// Wait blocks until every running call has finished or ctx ends.
func (gs *GatewayServer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		gs.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
