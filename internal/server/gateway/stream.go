package gateway

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/core/utils"
	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/session"
	sse "github.com/tmaxmax/go-sse"
)

var endpointEvent = sse.Type("endpoint")

// HandleStream opens a session for an authenticated caller and keeps its
// event stream running until the client leaves or the session is closed.
func (gs *GatewayServer) HandleStream(w http.ResponseWriter, r *http.Request) {
	identity, err := gs.auth.Authenticate(r.Context(), auth.Token(r, gs.opts.TokenParam))
	if err != nil {
		gs.log.Info("stream rejected", slog.String("issue", err.Error()), slog.Group("connection", slog.String("ip", r.RemoteAddr)))
		utils.WriteJSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	stream, err := sse.Upgrade(w, r)
	if err != nil {
		gs.log.Error("failed to upgrade stream", slog.String("err", err.Error()))
		utils.WriteJSONError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}
	s, err := gs.registry.Open(identity)
	if err != nil {
		gs.log.Error("failed to open session", slog.String("err", err.Error()))
		utils.WriteJSONError(w, http.StatusInternalServerError, "failed to open session")
		return
	}
	reason := session.ReasonClientGone
	defer func() { gs.registry.Close(s.ID, reason) }()

	gs.log.Info("stream opened", slog.String("session-uuid", s.ID), slog.String("subject", identity.Subject), slog.Group("connection", slog.String("ip", r.RemoteAddr)))

	endpoint := &sse.Message{Type: endpointEvent}
	endpoint.AppendData(gs.endpointFor(s.ID))
	if err := send(stream, endpoint); err != nil {
		reason = session.ReasonWriteFail
		return
	}

	var keepAlive <-chan time.Time
	if gs.opts.KeepAlive > 0 {
		ticker := time.NewTicker(gs.opts.KeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.Done():
			reason = s.Reason()
			return
		case payload := <-s.Outbound():
			msg := &sse.Message{}
			msg.AppendData(string(payload))
			if err := send(stream, msg); err != nil {
				gs.log.Debug("stream write failed", slog.String("session-uuid", s.ID), slog.String("err", err.Error()))
				reason = session.ReasonWriteFail
				return
			}
		case <-keepAlive:
			ping := &sse.Message{}
			ping.AppendComment("ping")
			if err := send(stream, ping); err != nil {
				reason = session.ReasonWriteFail
				return
			}
		}
	}
}

func (gs *GatewayServer) endpointFor(id string) string {
	return gs.opts.MessagePath + "?session=" + url.QueryEscape(id)
}

func send(stream *sse.Session, msg *sse.Message) error {
	if err := stream.Send(msg); err != nil {
		return err
	}
	return stream.Flush()
}
