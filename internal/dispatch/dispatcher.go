// Package dispatch routes inbound websocket frames to the session core and
// answers the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/chatlog"
	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/metrics"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/session"
	"github.com/Vasu1712/listenparty-backend/internal/storage"
	"github.com/Vasu1712/listenparty-backend/internal/ws"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Outbound events sent by the dispatcher.
const (
	EventError          = "error"
	EventChatAction     = "chat_action"
	EventListenerUpdate = "listener_update"
)

// Caller is the identity a frame arrived with. Username is empty for
// anonymous connections.
type Caller struct {
	ConnID   string
	Username string
}

func (c Caller) participant() session.Participant {
	return session.Participant{Username: c.Username, ConnID: c.ConnID}
}

// Reply is the outcome of a handler. Data answers the caller; After runs
// once the answer is queued.
type Reply struct {
	Data  any
	After func(ctx context.Context)
}

type handlerFunc func(ctx context.Context, c Caller, f ws.Frame) (*Reply, error)

type route struct {
	requiresAuth bool
	handle       handlerFunc
}

// Sender is the outbound side of the websocket hub.
type Sender interface {
	Emit(group, event string, data any, exclude ...string)
	EmitTo(connID, event string, data any)
	Ack(connID string, id int64, data any)
	Kick(connID string)
}

// Registrar binds an identity to its connection.
type Registrar interface {
	Register(ctx context.Context, username, connID string) error
}

// TrackVerifier checks queued tracks against the music catalog.
type TrackVerifier interface {
	VerifyTrack(ctx context.Context, username, trackID string) (bool, error)
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Machine  *session.Machine
	Presence Registrar
	Chat     *chatlog.Log
	Users    storage.UserStore
	Streams  storage.StreamStore
	Catalog  TrackVerifier
	Out      Sender
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

type Dispatcher struct {
	Deps
	log      *zap.Logger
	validate *validator.Validate
	routes   map[string]route
}

func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		Deps:     deps,
		log:      deps.Log.Named("dispatch"),
		validate: newValidator(),
	}
	d.routes = map[string]route{
		"status":          {requiresAuth: false, handle: d.status},
		"stop":            {requiresAuth: true, handle: d.stop},
		"start_stream":    {requiresAuth: true, handle: d.startStream},
		"listen_stream":   {requiresAuth: true, handle: d.listenStream},
		"streamer_update": {requiresAuth: true, handle: d.streamerUpdate},
		"dj_add":          {requiresAuth: true, handle: d.djAdd},
		"queue_add":       {requiresAuth: true, handle: d.queueAdd},
		"text_message":    {requiresAuth: true, handle: d.textMessage},
	}
	return d
}

// Connect registers the presence of an authenticated caller, disconnecting
// any older connection of the same identity first.
func (d *Dispatcher) Connect(ctx context.Context, c Caller) error {
	d.Metrics.Event("connect", "ok")
	if c.Username == "" {
		return nil
	}
	if err := d.Presence.Register(ctx, c.Username, c.ConnID); err != nil {
		return fmt.Errorf("register %s: %w", c.Username, err)
	}
	return nil
}

// Disconnect releases the caller's session. Failures are logged only.
func (d *Dispatcher) Disconnect(ctx context.Context, c Caller) {
	d.Metrics.Event("disconnect", "ok")
	if err := d.Machine.Disconnect(ctx, c.participant()); err != nil {
		d.log.Error("disconnect cleanup", zap.String("conn", c.ConnID),
			zap.String("user", c.Username), zap.Error(err))
	}
}

// Dispatch handles one frame. Frames of one connection must be dispatched
// sequentially.
func (d *Dispatcher) Dispatch(ctx context.Context, c Caller, f ws.Frame) {
	r, ok := d.routes[f.Event]
	if !ok {
		d.Metrics.Event("unknown", "error")
		d.fail(c, f, errs.Validation(fmt.Sprintf("Unknown event %q.", f.Event)))
		return
	}
	if r.requiresAuth && c.Username == "" {
		d.Metrics.Event(f.Event, "kicked")
		d.log.Info("anonymous caller on gated event", zap.String("conn", c.ConnID), zap.String("event", f.Event))
		d.Out.Kick(c.ConnID)
		return
	}

	reply, err := r.handle(ctx, c, f)
	if err != nil {
		d.Metrics.Event(f.Event, "error")
		d.fail(c, f, err)
		return
	}
	d.Metrics.Event(f.Event, "ok")
	if reply == nil {
		reply = &Reply{}
	}
	switch {
	case f.Ack != nil:
		d.Out.Ack(c.ConnID, *f.Ack, reply.Data)
	case reply.Data != nil:
		d.Out.EmitTo(c.ConnID, f.Event, reply.Data)
	}
	if reply.After != nil {
		reply.After(ctx)
	}
}

// fail reports err to the caller only, as the ack payload when one is awaited.
func (d *Dispatcher) fail(c Caller, f ws.Frame, err error) {
	if errors.Is(err, errs.ErrUpstream) || !isClassified(err) {
		d.log.Error("event failed", zap.String("event", f.Event),
			zap.String("conn", c.ConnID), zap.String("user", c.Username), zap.Error(err))
	} else {
		d.log.Debug("event rejected", zap.String("event", f.Event),
			zap.String("conn", c.ConnID), zap.Error(err))
	}

	msg, fields := errs.Public(err)
	action := models.ChatAction{
		Sender: c.Username,
		Date:   time.Now().UTC(),
		Body:   models.ErrorBody{Message: msg, Errors: fields},
	}
	if f.Ack != nil {
		d.Out.Ack(c.ConnID, *f.Ack, action)
		return
	}
	d.Out.EmitTo(c.ConnID, EventError, action)
}

func isClassified(err error) bool {
	var e *errs.Error
	return errors.As(err, &e)
}
