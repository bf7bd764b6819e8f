package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/cache"
	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/presence"
	"github.com/Vasu1712/listenparty-backend/internal/rooms"
	"github.com/Vasu1712/listenparty-backend/internal/storage"
	"github.com/Vasu1712/listenparty-backend/internal/storage/memory"
	"github.com/Vasu1712/listenparty-backend/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store   *memory.Store
	hub     *ws.Hub
	reg     *presence.Registry
	tracker *rooms.Tracker
	machine *Machine
	clients map[string]*ws.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	hub := ws.NewHub(zap.NewNop(), nil)
	reg := presence.NewRegistry(cache.NewMemory(), hub, "", time.Second, zap.NewNop())
	tracker := rooms.NewTracker(hub, reg)
	return &fixture{
		store:   store,
		hub:     hub,
		reg:     reg,
		tracker: tracker,
		machine: NewMachine(store, store, tracker, reg, hub, zap.NewNop()),
		clients: make(map[string]*ws.Client),
	}
}

func (f *fixture) connect(t *testing.T, username string) Participant {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.UpsertUser(ctx, &models.User{Username: username}))
	p := Participant{Username: username, ConnID: username + "-conn"}
	c := ws.NewClient(p.ConnID, username, nil, 32)
	f.hub.Attach(c)
	f.clients[username] = c
	require.NoError(t, f.reg.Register(ctx, username, p.ConnID))
	return p
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), username)
	require.NoError(t, err)
	return u
}

func events(c *ws.Client) []string {
	var out []string
	for {
		select {
		case msg := <-c.Send:
			var f struct {
				Event string `json:"event"`
			}
			_ = json.Unmarshal(msg, &f)
			out = append(out, f.Event)
		default:
			return out
		}
	}
}

func assertIdleInvariant(t *testing.T, u *models.User) {
	t.Helper()
	assert.Equal(t, u.Activity == models.ActivityNone, u.Stream == "", "user %s: %+v", u.Username, u.Participation())
}

func TestStartListenStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	res, err := f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)
	assert.Equal(t, "Started streaming at partyroom as alice.", res.Message.Text)
	assert.Equal(t, models.ActivityStream, res.Status.Activity)
	require.NotNil(t, res.Status.Listener)
	assert.Equal(t, 0, *res.Status.Listener)

	res, err = f.machine.ListenStream(ctx, bob, "partyroom")
	require.NoError(t, err)
	assert.Equal(t, models.ActivityListen, res.Status.Activity)
	assert.Equal(t, []string{alice.ConnID, bob.ConnID}, f.hub.Members(rooms.RoomName("partyroom")))

	st, err := f.store.GetStream(ctx, "partyroom")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, st.Listeners)
	assert.False(t, st.IsListener("alice"))

	events(f.clients["alice"])
	events(f.clients["bob"])

	res, err = f.machine.Stop(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Stream is stopped", res.Message.Text)

	st, err = f.store.GetStream(ctx, "partyroom")
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Empty(t, st.Listeners)
	for _, name := range []string{"alice", "bob"} {
		u := f.user(t, name)
		assert.Equal(t, models.Idle, u.Participation())
		assertIdleInvariant(t, u)
	}
	assert.Empty(t, f.hub.Members(rooms.RoomName("partyroom")))
	assert.Equal(t, []string{EventStreamStopped}, events(f.clients["bob"]))
	assert.Empty(t, events(f.clients["alice"]))
}

func TestStartStreamRejectsBadName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")

	for _, name := range []string{"ab", "abc", "name-", "this name is way too long", "bad!name"} {
		_, err := f.machine.StartStream(ctx, alice, name)
		require.ErrorIs(t, err, errs.ErrValidation, name)
		_, err = f.store.GetStream(ctx, name)
		assert.ErrorIs(t, err, errs.ErrNotFound, name)
	}
	assert.Equal(t, models.Idle, f.user(t, "alice").Participation())
}

func TestValidStreamName(t *testing.T) {
	assert.True(t, ValidStreamName("abcd"))
	assert.True(t, ValidStreamName("my_party 2"))
	assert.True(t, ValidStreamName("abcdefghij0123456789"))
	assert.False(t, ValidStreamName("abcdefghij01234567890"))
	assert.False(t, ValidStreamName("party_"))
}

func TestStartStreamIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")

	_, err := f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)
	_, err = f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)

	_, err = f.machine.StartStream(ctx, alice, "otherroom")
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, models.Streaming("partyroom"), f.user(t, "alice").Participation())
}

func TestStartStreamConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	_, err := f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)

	_, err = f.machine.StartStream(ctx, bob, "partyroom")
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, models.Idle, f.user(t, "bob").Participation())

	_, err = f.machine.ListenStream(ctx, bob, "partyroom")
	require.NoError(t, err)
	_, err = f.machine.StartStream(ctx, bob, "bobsroom")
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestListenConflictLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")
	carol := f.connect(t, "carol")
	bob := f.connect(t, "bob")

	_, err := f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)
	_, err = f.machine.StartStream(ctx, carol, "otherroom")
	require.NoError(t, err)
	_, err = f.machine.ListenStream(ctx, bob, "partyroom")
	require.NoError(t, err)

	_, err = f.machine.ListenStream(ctx, bob, "otherroom")
	require.ErrorIs(t, err, errs.ErrConflict)

	assert.Equal(t, models.Listening("partyroom"), f.user(t, "bob").Participation())
	other, err := f.store.GetStream(ctx, "otherroom")
	require.NoError(t, err)
	assert.Empty(t, other.Listeners)
	assert.Equal(t, []string{rooms.RoomName("partyroom")}, f.hub.Groups(bob.ConnID))
}

func TestListenInactiveStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.connect(t, "bob")

	_, err := f.machine.ListenStream(ctx, bob, "nowhere")
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, models.Idle, f.user(t, "bob").Participation())
	assert.Empty(t, f.hub.Groups(bob.ConnID))
}

func TestStopListening(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	_, err := f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)
	_, err = f.machine.ListenStream(ctx, bob, "partyroom")
	require.NoError(t, err)
	events(f.clients["alice"])

	res, err := f.machine.Stop(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "Listening is stopped", res.Message.Text)
	assert.Equal(t, models.Idle, f.user(t, "bob").Participation())
	assert.Empty(t, f.hub.Groups(bob.ConnID))
	assert.Equal(t, []string{EventListenerLeft}, events(f.clients["alice"]))

	st, err := f.store.GetStream(ctx, "partyroom")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Empty(t, st.Listeners)
}

func TestStopIdleIsNoop(t *testing.T) {
	f := newFixture(t)
	bob := f.connect(t, "bob")

	res, err := f.machine.Stop(context.Background(), bob)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestRestartKeepsDJsOfSameStreamer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")
	f.connect(t, "bob")
	carol := f.connect(t, "carol")

	_, err := f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)
	_, err = f.store.AddDJ(ctx, "partyroom", "alice", "bob")
	require.NoError(t, err)
	_, err = f.machine.Stop(ctx, alice)
	require.NoError(t, err)

	_, err = f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)
	st, err := f.store.GetStream(ctx, "partyroom")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, st.DJ)

	_, err = f.machine.Stop(ctx, alice)
	require.NoError(t, err)
	_, err = f.machine.StartStream(ctx, carol, "partyroom")
	require.NoError(t, err)
	st, err = f.store.GetStream(ctx, "partyroom")
	require.NoError(t, err)
	assert.Equal(t, "carol", st.Streamer)
	assert.Empty(t, st.DJ)
}

func TestDisconnectStopsAndUnregisters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	_, err := f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)
	_, err = f.machine.ListenStream(ctx, bob, "partyroom")
	require.NoError(t, err)

	require.NoError(t, f.machine.Disconnect(ctx, alice))

	_, ok, err := f.reg.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.Idle, f.user(t, "bob").Participation())
	assert.Empty(t, f.hub.Groups(bob.ConnID))
	assert.Empty(t, f.hub.Groups(alice.ConnID))
}

func TestDisconnectOfReplacedConnectionKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")
	_, err := f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)

	// The old connection cleans up only after its successor registered.
	next := Participant{Username: "alice", ConnID: "alice-conn-2"}
	f.hub.Attach(ws.NewClient(next.ConnID, "alice", nil, 8))
	shortCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.NoError(t, f.reg.Register(shortCtx, "alice", next.ConnID))

	require.NoError(t, f.machine.Disconnect(ctx, alice))

	assert.Equal(t, models.Streaming("partyroom"), f.user(t, "alice").Participation())
	connID, ok, err := f.reg.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, next.ConnID, connID)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	anon, err := f.machine.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.AnonymousStatus(), anon)

	require.NoError(t, f.store.UpsertUser(ctx, &models.User{Username: "dave", DisplayName: "Dave"}))
	st, err := f.machine.Status(ctx, "dave")
	require.NoError(t, err)
	require.NotNil(t, st.Username)
	assert.Equal(t, "Dave", *st.Username)
	assert.Nil(t, st.Stream)
	assert.Nil(t, st.Listener)

	_, err = f.machine.Status(ctx, "nobody")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestConcurrentListenAndStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "alice")
	listeners := []Participant{f.connect(t, "l1"), f.connect(t, "l2"), f.connect(t, "l3"), f.connect(t, "l4")}

	_, err := f.machine.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, p := range listeners {
		wg.Add(1)
		go func(p Participant) {
			defer wg.Done()
			_, _ = f.machine.ListenStream(ctx, p, "partyroom")
		}(p)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = f.machine.Stop(ctx, alice)
	}()
	wg.Wait()

	st, err := f.store.GetStream(ctx, "partyroom")
	require.NoError(t, err)
	for _, p := range listeners {
		u := f.user(t, p.Username)
		assertIdleInvariant(t, u)
		assert.LessOrEqual(t, len(f.hub.Groups(p.ConnID)), 1)
		if !st.Active {
			assert.Equal(t, models.Idle, u.Participation())
			assert.Empty(t, f.hub.Groups(p.ConnID))
		}
	}
	assert.False(t, st.IsListener("alice"))
}

// releaseHook runs after once the first stream release went through.
type releaseHook struct {
	storage.StreamStore
	once  sync.Once
	after func()
}

func (h *releaseHook) ReleaseStream(ctx context.Context, name, streamer string) ([]string, error) {
	listeners, err := h.StreamStore.ReleaseStream(ctx, name, streamer)
	h.once.Do(h.after)
	return listeners, err
}

func TestReclaimDuringStopKeepsNewStreamer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	carol := f.connect(t, "carol")

	hook := &releaseHook{StreamStore: f.store}
	m := NewMachine(f.store, hook, f.tracker, f.reg, f.hub, zap.NewNop())
	var reclaimErr error
	hook.after = func() {
		_, reclaimErr = m.StartStream(ctx, carol, "partyroom")
	}

	_, err := m.StartStream(ctx, alice, "partyroom")
	require.NoError(t, err)
	_, err = m.ListenStream(ctx, bob, "partyroom")
	require.NoError(t, err)

	_, err = m.Stop(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, reclaimErr)

	st, err := f.store.GetStream(ctx, "partyroom")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, "carol", st.Streamer)
	assert.Empty(t, st.Listeners)

	assert.Equal(t, models.Streaming("partyroom"), f.user(t, "carol").Participation())
	assert.Equal(t, models.Idle, f.user(t, "alice").Participation())
	assert.Equal(t, models.Idle, f.user(t, "bob").Participation())
	assert.Equal(t, []string{carol.ConnID}, f.hub.Members(rooms.RoomName("partyroom")))
}
