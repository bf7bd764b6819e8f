package account

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterAccountRoutes registers the login flow and the session check endpoints.
func RegisterAccountRoutes(r *mux.Router, handler *AccountHandler) {
	r.HandleFunc("/api/login", handler.Login).Methods(http.MethodGet)
	r.HandleFunc("/api/auth", handler.Auth).Methods(http.MethodGet)
	r.HandleFunc("/api/logout", handler.Logout).Methods(http.MethodGet)
	r.HandleFunc("/api/logged-in", handler.LoggedIn).Methods(http.MethodGet)
	r.HandleFunc("/api/access_token", handler.AccessToken).Methods(http.MethodGet)
}
