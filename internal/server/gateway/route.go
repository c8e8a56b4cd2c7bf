package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/akyaiy/GoSally-stream/internal/core/utils"
	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/rpc"
	"github.com/akyaiy/GoSally-stream/internal/server/session"
	"github.com/sourcegraph/jsonrpc2"
)

// HandleInbound accepts one POSTed message for sessionID on behalf of
// caller. Requests run in the background on the session's context and
// their response is queued on the session stream; a nil error only means
// the message was accepted.
func (gs *GatewayServer) HandleInbound(ctx context.Context, sessionID string, caller auth.Identity, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, ok := gs.registry.Lookup(sessionID)
	if !ok {
		return ErrNotFound
	}
	if !s.Identity.Equal(caller) {
		return ErrForbidden
	}

	msg, err := rpc.Decode(raw)
	if err != nil {
		return err
	}
	if msg.JSONRPC != rpc.JSONRPCVersion {
		return fmt.Errorf("%w: unsupported jsonrpc version %q", ErrInvalidRequest, msg.JSONRPC)
	}

	switch msg.Kind() {
	case rpc.KindRequest:
		req := msg.Request()
		gs.inflight.Add(1)
		go func() {
			defer gs.inflight.Done()
			gs.respond(s, req)
		}()
	case rpc.KindNotification:
		n := msg.Notification()
		gs.inflight.Add(1)
		go func() {
			defer gs.inflight.Done()
			gs.notify(s, n)
		}()
	default:
		return fmt.Errorf("%w: expected a request or a notification", ErrInvalidRequest)
	}
	return nil
}

func (gs *GatewayServer) respond(s *session.Session, req *rpc.RPCRequest) {
	resp := gs.Route(s, req)
	payload, err := rpc.Encode(resp)
	if err != nil {
		gs.log.Error("failed to encode response", slog.String("method", req.Method), slog.String("err", err.Error()))
		payload, _ = rpc.Encode(rpc.NewError(rpc.ErrInternalError, rpc.ErrInternalErrorS, nil, &req.ID))
	}
	if err := s.Send(s.Context(), payload); err != nil {
		gs.log.Debug("response dropped", slog.String("session-uuid", s.ID), slog.String("method", req.Method), slog.String("err", err.Error()))
	}
}

// Route runs one request against the dispatcher. It never fails: errors
// and panics come back as error responses so the session keeps going.
func (gs *GatewayServer) Route(s *session.Session, req *rpc.RPCRequest) (resp *rpc.RPCResponse) {
	defer utils.CatchPanicWithFallback(func(rec any) {
		gs.log.Error("panic caught in handler", slog.Any("error", rec), slog.String("method", req.Method))
		resp = rpc.NewError(rpc.ErrInternalError, "Internal server error (panic)", nil, &req.ID)
	})

	ctx := s.Context()
	if gs.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gs.opts.CallTimeout)
		defer cancel()
	}

	gs.log.Debug("new request", slog.String("session-uuid", s.ID), slog.String("method", req.Method), slog.String("id", req.ID.String()))
	result, err := gs.dispatcher.Dispatch(ctx, s.Identity, req)
	if err != nil {
		gs.log.Info("call failed", slog.String("method", req.Method), slog.String("err", err.Error()))
		return errorResponse(err, &req.ID)
	}
	resp, err = rpc.NewResponse(result, &req.ID)
	if err != nil {
		gs.log.Error("failed to encode result", slog.String("method", req.Method), slog.String("err", err.Error()))
		return rpc.NewError(rpc.ErrInternalError, rpc.ErrInternalErrorS, nil, &req.ID)
	}
	return resp
}

func (gs *GatewayServer) notify(s *session.Session, n *rpc.RPCNotification) {
	defer utils.CatchPanicWithFallback(func(rec any) {
		gs.log.Error("panic caught in notification handler", slog.Any("error", rec), slog.String("method", n.Method))
	})
	gs.dispatcher.Notify(s.Context(), s.Identity, n)
}

func errorResponse(err error, id *jsonrpc2.ID) *rpc.RPCResponse {
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return rpc.NewErrorFrom(rpcErr, id)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return rpc.NewError(rpc.ErrToolFailed, "call timed out", nil, id)
	}
	return rpc.NewError(rpc.ErrToolFailed, err.Error(), nil, id)
}
