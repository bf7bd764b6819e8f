package chatlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadBack(t *testing.T) {
	ctx := context.Background()
	log := New(memory.NewStore())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	msg, err := log.Message(ctx, "alice", "partyroom", "hello")
	require.NoError(t, err)
	_, err = log.AddDJ(ctx, "alice", "partyroom", "bob")
	require.NoError(t, err)
	_, err = log.AddQueue(ctx, "bob", "partyroom", "spotify:track:abc")
	require.NoError(t, err)
	_, err = log.Message(ctx, "carol", "otherroom", "elsewhere")
	require.NoError(t, err)

	history, err := log.History(ctx, "partyroom", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, msg.ID, history[0].ID)
	assert.Equal(t, "alice", history[0].Sender)
	assert.Equal(t, "partyroom", history[0].Stream)
	assert.True(t, fixed.Equal(history[0].Date))
	assert.Equal(t, models.Message{Text: "hello"}, history[0].Body)
	assert.Equal(t, models.DJAdd{Who: "bob"}, history[1].Body)
	assert.Equal(t, models.QueueAdd{Track: "spotify:track:abc"}, history[2].Body)

	latest, err := log.History(ctx, "partyroom", 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, models.ActionAddQueue, latest[0].Type())
}

func TestActionJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	log := New(memory.NewStore())

	a, err := log.AddQueue(ctx, "bob", "partyroom", "spotify:track:abc")
	require.NoError(t, err)

	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "add_queue", fields["action_type"])
	assert.Equal(t, "spotify:track:abc", fields["track"])

	var back models.ChatAction
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, a.ID, back.ID)
	assert.Equal(t, a.Sender, back.Sender)
	assert.Equal(t, a.Stream, back.Stream)
	assert.True(t, a.Date.Equal(back.Date))
	assert.Equal(t, a.Body, back.Body)
}
