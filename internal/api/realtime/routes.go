package realtime

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRealtimeRoutes mounts the websocket endpoint.
func RegisterRealtimeRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)
}
