// Package api holds the response helpers shared by the REST handlers.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/Vasu1712/listenparty-backend/internal/errs"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error maps err to a status code and writes its public message.
func Error(w http.ResponseWriter, err error) {
	msg, _ := errs.Public(err)
	http.Error(w, msg, errs.HTTPStatus(err))
}
