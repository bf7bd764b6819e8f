package streams

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterStreamRoutes registers the stream read endpoints.
func RegisterStreamRoutes(r *mux.Router, handler *StreamHandler) {
	r.HandleFunc("/api/v1/status", handler.Status).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/streams", handler.ListStreams).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/streams/{name}", handler.GetStream).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/streams/{name}/listeners", handler.Listeners).Methods(http.MethodGet)
}
