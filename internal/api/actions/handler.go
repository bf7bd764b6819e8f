package actions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Vasu1712/listenparty-backend/internal/api"
	"github.com/Vasu1712/listenparty-backend/internal/chatlog"
	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/storage"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ActionHandler serves the chat history of a stream.
type ActionHandler struct {
	Chat     *chatlog.Log
	Streams  storage.StreamStore
	MaxLimit int
	Log      *zap.Logger
}

// History handles GET /api/v1/streams/{name}/actions?limit= and returns the
// latest records, oldest first.
func (h *ActionHandler) History(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	limit := chatlog.DefaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if h.MaxLimit > 0 && limit > h.MaxLimit {
		limit = h.MaxLimit
	}

	// Unknown streams are a 404, not an empty history
	if _, err := h.Streams.GetStream(r.Context(), name); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			http.Error(w, "Stream not found", http.StatusNotFound)
			return
		}
		h.Log.Error("get stream", zap.String("stream", name), zap.Error(err))
		api.Error(w, errs.Upstream(err))
		return
	}

	history, err := h.Chat.History(r.Context(), name, limit)
	if err != nil {
		h.Log.Error("read history", zap.String("stream", name), zap.Error(err))
		api.Error(w, errs.Upstream(err))
		return
	}
	if history == nil {
		history = []*models.ChatAction{}
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"stream":  name,
		"actions": history,
	})
}
