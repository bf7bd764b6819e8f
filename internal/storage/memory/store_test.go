package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapParticipation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.UpsertUser(ctx, &models.User{Username: "alice", Activity: models.ActivityStream}))

	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.Idle, u.Participation())

	ok, err := s.SwapParticipation(ctx, "alice", models.Idle, models.Listening("room"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SwapParticipation(ctx, "alice", models.Idle, models.Streaming("room"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.SwapParticipation(ctx, "bob", models.Idle, models.Streaming("room"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpsertKeepsParticipation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.UpsertUser(ctx, &models.User{Username: "alice"}))
	_, err := s.SwapParticipation(ctx, "alice", models.Idle, models.Streaming("room"))
	require.NoError(t, err)

	require.NoError(t, s.UpsertUser(ctx, &models.User{Username: "alice", DisplayName: "Alice"}))
	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name())
	assert.Equal(t, models.Streaming("room"), u.Participation())
}

func TestClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	st, err := s.ClaimStream(ctx, "room", "alice", now)
	require.NoError(t, err)
	assert.True(t, st.Active)

	_, err = s.ClaimStream(ctx, "room", "bob", now)
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = s.AddListener(ctx, "room", "alice")
	assert.ErrorIs(t, err, errs.ErrConflict)
	_, err = s.AddListener(ctx, "room", "bob")
	require.NoError(t, err)
	st, err = s.AddListener(ctx, "room", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, st.Listeners)

	_, err = s.AddDJ(ctx, "room", "alice", "bob")
	require.NoError(t, err)

	listeners, err := s.ReleaseStream(ctx, "room", "bob")
	require.NoError(t, err)
	assert.Nil(t, listeners)

	listeners, err = s.ReleaseStream(ctx, "room", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, listeners)

	_, err = s.AddListener(ctx, "room", "carol")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	st, err = s.ClaimStream(ctx, "room", "alice", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, st.DJ)

	_, err = s.ReleaseStream(ctx, "room", "alice")
	require.NoError(t, err)
	st, err = s.ClaimStream(ctx, "room", "carol", now)
	require.NoError(t, err)
	assert.Empty(t, st.DJ)
}

func TestAddDJRights(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, err := s.ClaimStream(ctx, "room", "alice", time.Now())
	require.NoError(t, err)

	_, err = s.AddDJ(ctx, "room", "bob", "carol")
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = s.AddDJ(ctx, "room", "alice", "bob")
	require.NoError(t, err)
	_, err = s.AddDJ(ctx, "room", "bob", "carol")
	require.NoError(t, err)
	_, err = s.AddDJ(ctx, "room", "alice", "carol")
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestResetListeners(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		require.NoError(t, s.UpsertUser(ctx, &models.User{Username: name}))
	}
	_, _ = s.SwapParticipation(ctx, "alice", models.Idle, models.Streaming("room"))
	_, _ = s.SwapParticipation(ctx, "bob", models.Idle, models.Listening("room"))
	_, _ = s.SwapParticipation(ctx, "carol", models.Idle, models.Listening("other"))
	_, _ = s.SwapParticipation(ctx, "dave", models.Idle, models.Listening("room"))

	n, err := s.ResetListeners(ctx, "room", []string{"alice", "bob", "carol", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for name, want := range map[string]models.Participation{
		"alice": models.Streaming("room"),
		"bob":   models.Idle,
		"carol": models.Listening("other"),
		"dave":  models.Listening("room"),
	} {
		u, err := s.GetUser(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, u.Participation(), name)
	}
}

func TestListActiveStreams(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		_, err := s.ClaimStream(ctx, name, name+"-dj", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	_, err := s.ReleaseStream(ctx, "second", "second-dj")
	require.NoError(t, err)

	page, total, err := s.ListActiveStreams(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "third", page[0].Name)

	page, _, err = s.ListActiveStreams(ctx, 5, 1)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, _, err = s.ListActiveStreams(ctx, -4, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "third", page[0].Name)
}

func TestListActionsKeepsLatest(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, s.AppendAction(ctx, &models.ChatAction{Stream: "room", Body: models.Message{Text: text}}))
	}
	out, err := s.ListActions(ctx, "room", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, models.Message{Text: "two"}, out[0].Body)
}
