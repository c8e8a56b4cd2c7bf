package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/rpc"
)

// HandleMessage accepts a POSTed JSON-RPC message for the session named by
// the session query parameter. The answer travels over the stream; the
// POST itself only reports whether the message was accepted.
func (gs *GatewayServer) HandleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		rpc.WriteError(w, http.StatusBadRequest, rpc.NewError(rpc.ErrInvalidRequest, "missing session id", nil, nil))
		return
	}

	identity, err := gs.auth.Authenticate(r.Context(), auth.Token(r, gs.opts.TokenParam))
	if err != nil {
		gs.log.Info("invalid request received", slog.String("issue", "unauthenticated"), slog.String("session-uuid", sessionID))
		rpc.WriteError(w, http.StatusUnauthorized, rpc.NewError(rpc.ErrInvalidRequest, "unauthenticated", nil, nil))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, gs.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rpc.WriteError(w, http.StatusRequestEntityTooLarge, rpc.NewError(rpc.ErrInvalidRequest, "message too large", nil, nil))
			return
		}
		gs.log.Debug("failed to read body", slog.String("err", err.Error()))
		rpc.WriteError(w, http.StatusBadRequest, rpc.NewError(rpc.ErrInternalError, rpc.ErrInternalErrorS, nil, nil))
		return
	}

	err = gs.HandleInbound(r.Context(), sessionID, identity, body)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, ErrNotFound):
		rpc.WriteError(w, http.StatusNotFound, rpc.NewError(rpc.ErrSessionClosed, ErrNotFound.Error(), nil, nil))
	case errors.Is(err, ErrForbidden):
		gs.log.Info("invalid request received", slog.String("issue", "identity mismatch"), slog.String("session-uuid", sessionID), slog.String("subject", identity.Subject))
		rpc.WriteError(w, http.StatusForbidden, rpc.NewError(rpc.ErrInvalidRequest, ErrForbidden.Error(), nil, nil))
	case errors.Is(err, ErrParse):
		gs.log.Info("invalid request received", slog.String("issue", rpc.ErrParseErrorS))
		rpc.WriteError(w, http.StatusBadRequest, rpc.NewError(rpc.ErrParseError, rpc.ErrParseErrorS, err.Error(), nil))
	case errors.Is(err, ErrInvalidRequest):
		gs.log.Info("invalid request received", slog.String("issue", rpc.ErrInvalidRequestS))
		rpc.WriteError(w, http.StatusBadRequest, rpc.NewError(rpc.ErrInvalidRequest, rpc.ErrInvalidRequestS, err.Error(), nil))
	default:
		rpc.WriteError(w, http.StatusInternalServerError, rpc.NewError(rpc.ErrInternalError, rpc.ErrInternalErrorS, nil, nil))
	}
}
