package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/rpc"
	"github.com/akyaiy/GoSally-stream/internal/server/session"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrForbidden = errors.New("session belongs to another identity")

	ErrParse          = rpc.ErrParse
	ErrInvalidRequest = rpc.ErrInvalid
)

// Dispatcher runs the calls that arrive on a session. A returned
// *jsonrpc2.Error is sent to the client as is; any other error becomes a
// tool failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, caller auth.Identity, req *rpc.RPCRequest) (any, error)
	Notify(ctx context.Context, caller auth.Identity, n *rpc.RPCNotification)
}

// GatewayServer serves the event stream and the message endpoint and
// routes every inbound message to the session it names.
type GatewayServer struct {
	registry   session.RegistryContract
	auth       auth.Authenticator
	dispatcher Dispatcher
	opts       Options
	log        *slog.Logger

	// calls still running, waited for on shutdown
	inflight sync.WaitGroup
}
