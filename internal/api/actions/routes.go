package actions

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterActionRoutes registers the chat history endpoint.
func RegisterActionRoutes(r *mux.Router, handler *ActionHandler) {
	r.HandleFunc("/api/v1/streams/{name}/actions", handler.History).Methods(http.MethodGet)
}
