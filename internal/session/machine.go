// Package session implements the Idle / Streaming / Listening state machine
// of a user and keeps stream records, room membership and presence in step
// with it.
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/rooms"
	"github.com/Vasu1712/listenparty-backend/internal/storage"
	"go.uber.org/zap"
)

// Outbound events emitted by the state machine.
const (
	EventStreamStopped = "stream_stopped"
	EventListenerLeft  = "listener_left"
)

// NameRule describes a valid stream name to clients.
const NameRule = "Stream name must be 4 to 20 characters of letters, digits, spaces, '_' or '-', ending with a letter or digit."

var streamName = regexp.MustCompile(`^[A-Za-z0-9 _-]{3,19}[A-Za-z0-9]$`)

// ValidStreamName reports whether name may be used for a stream.
func ValidStreamName(name string) bool {
	return streamName.MatchString(name)
}

// Broadcaster fans an event out to a group of connections.
type Broadcaster interface {
	Emit(group, event string, data any, exclude ...string)
}

// Presence is the part of the presence registry the machine needs.
type Presence interface {
	Lookup(ctx context.Context, username string) (string, bool, error)
	Unregister(ctx context.Context, username, connID string) error
}

// Participant identifies the caller of a transition.
type Participant struct {
	Username string
	ConnID   string
}

// Result is returned by successful transitions.
type Result struct {
	Message models.Notice `json:"message"`
	Status  models.Status `json:"status"`
}

type Machine struct {
	users    storage.UserStore
	streams  storage.StreamStore
	rooms    *rooms.Tracker
	presence Presence
	bus      Broadcaster
	log      *zap.Logger
	now      func() time.Time
}

func NewMachine(users storage.UserStore, streams storage.StreamStore, tracker *rooms.Tracker,
	presence Presence, bus Broadcaster, log *zap.Logger) *Machine {
	return &Machine{
		users:    users,
		streams:  streams,
		rooms:    tracker,
		presence: presence,
		bus:      bus,
		log:      log.Named("session"),
		now:      time.Now,
	}
}

func nameError(name string) error {
	return errs.Validation(NameRule, models.FieldError{
		Field:   "stream_name",
		Tag:     "streamname",
		Param:   name,
		Message: NameRule,
	})
}

func (m *Machine) user(ctx context.Context, username string) (*models.User, error) {
	u, err := m.users.GetUser(ctx, username)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.NotFound("Unknown user.")
	}
	if err != nil {
		return nil, errs.Upstream(err)
	}
	return u, nil
}

// StartStream makes the caller the streamer of name. Restarting one's own
// active stream is a no-op apart from rejoining its room.
func (m *Machine) StartStream(ctx context.Context, p Participant, name string) (*Result, error) {
	if !ValidStreamName(name) {
		return nil, nameError(name)
	}
	u, err := m.user(ctx, p.Username)
	if err != nil {
		return nil, err
	}
	switch {
	case u.Activity == models.ActivityListen:
		return nil, errs.Conflict("You can't start streaming while listening.")
	case u.Activity == models.ActivityStream && u.Stream != name:
		return nil, errs.Conflict("You are already streaming another stream.")
	}

	if _, err := m.streams.ClaimStream(ctx, name, p.Username, m.now().UTC()); err != nil {
		return nil, errs.Upstream(err)
	}
	if u.Activity == models.ActivityNone {
		ok, err := m.users.SwapParticipation(ctx, p.Username, models.Idle, models.Streaming(name))
		if err != nil || !ok {
			if terr := m.teardown(ctx, p, name); terr != nil {
				m.log.Error("roll back claim", zap.String("stream", name), zap.Error(terr))
			}
			if err != nil {
				return nil, errs.Upstream(err)
			}
			return nil, errs.Conflict("Your session changed, try again.")
		}
	}
	if err := m.rooms.JoinRoom(p.ConnID, rooms.RoomName(name)); err != nil {
		return nil, errs.Upstream(fmt.Errorf("join room: %w", err))
	}

	m.log.Info("stream started", zap.String("stream", name), zap.String("user", p.Username))
	return m.result(ctx, p.Username, fmt.Sprintf("Started streaming at %s as %s.", name, u.Name()), true)
}

// ListenStream adds the caller to the listeners of the active stream name.
func (m *Machine) ListenStream(ctx context.Context, p Participant, name string) (*Result, error) {
	if !ValidStreamName(name) {
		return nil, nameError(name)
	}
	u, err := m.user(ctx, p.Username)
	if err != nil {
		return nil, err
	}
	switch u.Activity {
	case models.ActivityStream:
		return nil, errs.Conflict("You can't start listening before streaming.")
	case models.ActivityListen:
		return nil, errs.Conflict("You can't start listening before leaving previous.")
	}

	ok, err := m.users.SwapParticipation(ctx, p.Username, models.Idle, models.Listening(name))
	if err != nil {
		return nil, errs.Upstream(err)
	}
	if !ok {
		return nil, errs.Conflict("Your session changed, try again.")
	}
	if _, err := m.streams.AddListener(ctx, name, p.Username); err != nil {
		if _, rerr := m.users.SwapParticipation(ctx, p.Username, models.Listening(name), models.Idle); rerr != nil {
			m.log.Error("revert listen", zap.String("user", p.Username), zap.Error(rerr))
		}
		return nil, errs.Upstream(err)
	}
	if err := m.rooms.JoinRoom(p.ConnID, rooms.RoomName(name)); err != nil {
		return nil, errs.Upstream(fmt.Errorf("join room: %w", err))
	}

	// A stop of the stream may have reset us between the push and the join.
	cur, err := m.user(ctx, p.Username)
	if err != nil {
		return nil, err
	}
	if cur.Participation() != models.Listening(name) {
		m.rooms.LeaveAllRooms(p.ConnID)
		return nil, errs.NotFound("This is not an active stream.")
	}

	m.log.Info("listener joined", zap.String("stream", name), zap.String("user", p.Username))
	return m.result(ctx, p.Username, fmt.Sprintf("Started listening at %s as %s.", name, u.Name()), true)
}

// Stop ends whatever the caller is doing. Idle callers get a nil result.
func (m *Machine) Stop(ctx context.Context, p Participant) (*Result, error) {
	u, err := m.user(ctx, p.Username)
	if err != nil {
		return nil, err
	}
	switch u.Activity {
	case models.ActivityListen:
		return m.stopListening(ctx, p, u)
	case models.ActivityStream:
		return m.stopStreaming(ctx, p, u)
	}
	return nil, nil
}

func (m *Machine) stopListening(ctx context.Context, p Participant, u *models.User) (*Result, error) {
	name := u.Stream
	// A failed swap means the stream was stopped meanwhile and already reset us.
	if _, err := m.users.SwapParticipation(ctx, p.Username, models.Listening(name), models.Idle); err != nil {
		return nil, errs.Upstream(err)
	}
	m.rooms.LeaveAllRooms(p.ConnID)

	st, err := m.streams.RemoveListener(ctx, name, p.Username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, errs.Upstream(err)
	}
	if st != nil {
		m.bus.Emit(rooms.RoomName(name), EventListenerLeft, map[string]any{
			"username": u.Name(),
			"listener": len(st.Listeners),
		})
	}

	m.log.Info("listener left", zap.String("stream", name), zap.String("user", p.Username))
	return m.result(ctx, p.Username, "Listening is stopped", false)
}

func (m *Machine) stopStreaming(ctx context.Context, p Participant, u *models.User) (*Result, error) {
	name := u.Stream
	m.bus.Emit(rooms.RoomName(name), EventStreamStopped, map[string]any{
		"message": models.NewNotice("Streamer stopped.", false),
	}, p.ConnID)

	if err := m.teardown(ctx, p, name); err != nil {
		return nil, errs.Upstream(err)
	}

	m.log.Info("stream stopped", zap.String("stream", name), zap.String("user", p.Username))
	return m.result(ctx, p.Username, "Stream is stopped", false)
}

// teardown deactivates name and returns its listeners and the initiator to
// idle. Only the listeners released with the stream are touched, so a user
// claiming the name right after the release keeps its new session and room.
func (m *Machine) teardown(ctx context.Context, p Participant, name string) error {
	listeners, err := m.streams.ReleaseStream(ctx, name, p.Username)
	if err != nil {
		return fmt.Errorf("release stream %s: %w", name, err)
	}
	n, err := m.users.ResetListeners(ctx, name, listeners)
	if err != nil {
		return fmt.Errorf("reset listeners of %s: %w", name, err)
	}
	if _, err := m.users.SwapParticipation(ctx, p.Username, models.Streaming(name), models.Idle); err != nil {
		return fmt.Errorf("reset streamer of %s: %w", name, err)
	}
	room := rooms.RoomName(name)
	for _, l := range listeners {
		if err := m.rooms.EvictUser(ctx, l, room); err != nil {
			m.log.Warn("evict listener from room", zap.String("stream", name),
				zap.String("user", l), zap.Error(err))
		}
	}
	m.rooms.LeaveRoom(p.ConnID, room)
	m.log.Debug("stream torn down", zap.String("stream", name), zap.Int64("reset", n))
	return nil
}

// Disconnect releases everything a closing connection holds. Presence and
// room membership are cleared even when stopping fails.
func (m *Machine) Disconnect(ctx context.Context, p Participant) error {
	var errList []error
	if p.Username != "" {
		owner, ok, err := m.presence.Lookup(ctx, p.Username)
		switch {
		case err != nil:
			errList = append(errList, err)
		case ok && owner != p.ConnID:
			// Replaced by a newer connection that now owns the session.
			m.log.Debug("skip stop of replaced connection",
				zap.String("user", p.Username), zap.String("conn", p.ConnID))
		default:
			if _, err := m.Stop(ctx, p); err != nil {
				errList = append(errList, err)
			}
		}
		if err := m.presence.Unregister(ctx, p.Username, p.ConnID); err != nil {
			errList = append(errList, err)
		}
	}
	m.rooms.LeaveAllRooms(p.ConnID)
	m.rooms.Forget(p.ConnID)
	return errors.Join(errList...)
}

// Status reads the current projection of username. Empty usernames are
// anonymous.
func (m *Machine) Status(ctx context.Context, username string) (models.Status, error) {
	if username == "" {
		return models.AnonymousStatus(), nil
	}
	u, err := m.user(ctx, username)
	if err != nil {
		return models.Status{}, err
	}
	name := u.Name()
	status := models.Status{Activity: u.Activity, Username: &name}
	if u.Stream == "" {
		return status, nil
	}
	stream := u.Stream
	status.Stream = &stream
	st, err := m.streams.GetStream(ctx, stream)
	switch {
	case errors.Is(err, errs.ErrNotFound):
	case err != nil:
		return models.Status{}, errs.Upstream(err)
	default:
		count := len(st.Listeners)
		status.Listener = &count
	}
	return status, nil
}

func (m *Machine) result(ctx context.Context, username, text string, ok bool) (*Result, error) {
	status, err := m.Status(ctx, username)
	if err != nil {
		return nil, err
	}
	return &Result{Message: models.NewNotice(text, ok), Status: status}, nil
}
