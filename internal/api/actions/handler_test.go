package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/chatlog"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/storage/memory"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, err := store.ClaimStream(ctx, "partyroom", "alice", time.Now())
	require.NoError(t, err)
	chat := chatlog.New(store)
	for _, text := range []string{"one", "two", "three"} {
		_, err := chat.Message(ctx, "alice", "partyroom", text)
		require.NoError(t, err)
	}

	r := mux.NewRouter()
	RegisterActionRoutes(r, &ActionHandler{Chat: chat, Streams: store, MaxLimit: 50, Log: zap.NewNop()})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/streams/partyroom/actions?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stream  string              `json:"stream"`
		Actions []models.ChatAction `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "partyroom", body.Stream)
	require.Len(t, body.Actions, 2)
	assert.Equal(t, models.Message{Text: "two"}, body.Actions[0].Body)
	assert.Equal(t, models.Message{Text: "three"}, body.Actions[1].Body)
	assert.Equal(t, "alice", body.Actions[1].Sender)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/streams/missing/actions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/streams/partyroom/actions?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
