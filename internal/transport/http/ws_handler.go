package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/auth"
	"github.com/driftchat/drift-server/internal/rtc"
)

// WSHandler upgrades connections, authenticates them at the gate, and
// bridges frames to the event dispatcher.
type WSHandler struct {
	gate       *auth.Gate
	registry   *rtc.Registry
	dispatcher *rtc.Dispatcher
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(gate *auth.Gate, registry *rtc.Registry, dispatcher *rtc.Dispatcher, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{gate: gate, registry: registry, dispatcher: dispatcher, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	// Authenticate before completing the handshake. An unauthenticated
	// socket never exists: no events run until the gate has bound a user id.
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}
	claims, err := h.gate.Verify(token)
	if err != nil {
		reason := auth.Reason(err)
		h.log.Debug().Err(err).Str("reason", reason).Str("remote", r.RemoteAddr).Msg("handshake rejected")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stdhttp.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: reason})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	session := rtc.NewSession(claims.UserID, r.RemoteAddr)
	defer h.registry.Disconnect(session)

	h.log.Info().Str("session_id", session.ID).Int64("user_id", session.UserID).Msg("connection established")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	h.registry.Disconnect(session)
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session_id", session.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop decodes inbound frames and dispatches them in arrival order, so a
// connection's acknowledged requests on the same room are never reordered.
// Other connections run in their own loops and interleave freely.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *rtc.Session) error {
	for {
		var inbound rtc.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		h.dispatcher.Dispatch(ctx, session, inbound)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *rtc.Session) error {
	for {
		select {
		case frame, ok := <-session.Outbound():
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID).Msg("write ws frame")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
