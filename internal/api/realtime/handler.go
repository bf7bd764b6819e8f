// Package realtime serves the websocket endpoint of the listen party.
package realtime

import (
	"context"
	"net/http"

	"github.com/Vasu1712/listenparty-backend/internal/dispatch"
	"github.com/Vasu1712/listenparty-backend/internal/ws"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Identifier resolves the caller of an upgrade request.
type Identifier interface {
	Identify(r *http.Request) (string, bool)
}

// Handler holds the dependencies of the websocket endpoint.
type Handler struct {
	Hub            *ws.Hub
	Dispatcher     *dispatch.Dispatcher
	Identity       Identifier
	Upgrader       websocket.Upgrader
	MaxMessageSize int64
	SendBuffer     int
	Log            *zap.Logger
}

// OriginChecker accepts requests without an Origin header and those from
// allowed. "*" accepts every origin.
func OriginChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed == "*" || origin == allowed
	}
}

// ServeWS upgrades the request and runs the connection until it closes.
// Identity is resolved once here; anonymous connections are allowed and may
// only use ungated events.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	username, _ := h.Identity.Identify(r)

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(uuid.NewString(), username, conn, h.SendBuffer)
	caller := dispatch.Caller{ConnID: client.ID, Username: username}
	log := h.Log.With(zap.String("conn", client.ID), zap.String("user", username))

	// The request context ends with this handler; the connection's own
	// lifetime is bounded by the read loop below.
	ctx := context.Background()

	h.Hub.Attach(client)
	defer func() {
		h.Dispatcher.Disconnect(ctx, caller)
		h.Hub.Remove(client.ID)
		client.Finish()
		log.Debug("connection closed")
	}()

	go client.WritePump(log)

	if err := h.Dispatcher.Connect(ctx, caller); err != nil {
		log.Error("connect", zap.Error(err))
		client.Close()
		return
	}
	log.Debug("connection opened")

	client.ReadPump(h.MaxMessageSize, log, func(f ws.Frame) {
		h.Dispatcher.Dispatch(ctx, caller, f)
	})
}
