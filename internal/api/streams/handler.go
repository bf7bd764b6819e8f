package streams

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/Vasu1712/listenparty-backend/internal/api"
	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/middleware"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/session"
	"github.com/Vasu1712/listenparty-backend/internal/storage"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// StreamHandler holds the dependencies for the stream read endpoints.
type StreamHandler struct {
	Store       storage.StreamStore // Stream records
	Machine     *session.Machine    // Source of the caller's status
	MaxPageSize int                 // Upper bound of the size query parameter
	Log         *zap.Logger
}

// Page is the response of ListStreams.
type Page struct {
	Streams []*models.Stream `json:"streams"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
}

// ListStreams handles GET /api/v1/streams?page=&size= and returns the active
// streams, newest first.
func (h *StreamHandler) ListStreams(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil || page < 1 {
		http.Error(w, "page must be a positive integer", http.StatusBadRequest)
		return
	}
	size, err := intParam(r, "size", h.MaxPageSize)
	if err != nil || size < 1 {
		http.Error(w, "size must be a positive integer", http.StatusBadRequest)
		return
	}
	// Never hand out more than MaxPageSize records at once
	if size > h.MaxPageSize {
		size = h.MaxPageSize
	}
	if page > math.MaxInt/size {
		http.Error(w, "page is out of range", http.StatusBadRequest)
		return
	}

	streams, total, err := h.Store.ListActiveStreams(r.Context(), (page-1)*size, size)
	if err != nil {
		h.Log.Error("list streams", zap.Error(err))
		api.Error(w, errs.Upstream(err))
		return
	}
	if streams == nil {
		streams = []*models.Stream{} // Return an empty list instead of null
	}

	api.JSON(w, http.StatusOK, Page{Streams: streams, Total: total, Page: page, Size: size})
}

// GetStream handles GET /api/v1/streams/{name}.
func (h *StreamHandler) GetStream(w http.ResponseWriter, r *http.Request) {
	st, ok := h.load(w, r)
	if !ok {
		return
	}
	api.JSON(w, http.StatusOK, st)
}

// Listeners handles GET /api/v1/streams/{name}/listeners.
func (h *StreamHandler) Listeners(w http.ResponseWriter, r *http.Request) {
	st, ok := h.load(w, r)
	if !ok {
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"name":      st.Name,
		"active":    st.Active,
		"listeners": st.Listeners,
		"count":     len(st.Listeners),
	})
}

// Status handles GET /api/v1/status. Anonymous callers get the empty status.
func (h *StreamHandler) Status(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.Username(r.Context())
	st, err := h.Machine.Status(r.Context(), username)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.JSON(w, http.StatusOK, st)
}

func (h *StreamHandler) load(w http.ResponseWriter, r *http.Request) (*models.Stream, bool) {
	name := mux.Vars(r)["name"]
	st, err := h.Store.GetStream(r.Context(), name)
	if errors.Is(err, errs.ErrNotFound) {
		http.Error(w, "Stream not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.Log.Error("get stream", zap.String("stream", name), zap.Error(err))
		api.Error(w, errs.Upstream(err))
		return nil, false
	}
	return st, true
}

func intParam(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
