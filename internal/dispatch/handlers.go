package dispatch

import (
	"context"
	"errors"

	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/rooms"
	"github.com/Vasu1712/listenparty-backend/internal/ws"
	"go.uber.org/zap"
)

type streamNamePayload struct {
	StreamName string `json:"stream_name" validate:"required,streamname"`
}

type streamerUpdatePayload struct {
	StreamData any `json:"stream_data" validate:"required"`
}

type djAddPayload struct {
	Who string `json:"who" validate:"required"`
}

type queueAddPayload struct {
	Track string `json:"track" validate:"required"`
}

type textMessagePayload struct {
	Message string `json:"message" validate:"required,min=1,max=231"`
}

func (d *Dispatcher) status(ctx context.Context, c Caller, _ ws.Frame) (*Reply, error) {
	st, err := d.Machine.Status(ctx, c.Username)
	if err != nil {
		return nil, err
	}
	return &Reply{Data: map[string]any{"status": st}}, nil
}

func (d *Dispatcher) stop(ctx context.Context, c Caller, _ ws.Frame) (*Reply, error) {
	res, err := d.Machine.Stop(ctx, c.participant())
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return &Reply{Data: res}, nil
}

func (d *Dispatcher) startStream(ctx context.Context, c Caller, f ws.Frame) (*Reply, error) {
	var p streamNamePayload
	if err := d.decode(f.Data, &p); err != nil {
		return nil, err
	}
	res, err := d.Machine.StartStream(ctx, c.participant(), p.StreamName)
	if err != nil {
		return nil, err
	}
	return &Reply{Data: res}, nil
}

func (d *Dispatcher) listenStream(ctx context.Context, c Caller, f ws.Frame) (*Reply, error) {
	var p streamNamePayload
	if err := d.decode(f.Data, &p); err != nil {
		return nil, err
	}
	res, err := d.Machine.ListenStream(ctx, c.participant(), p.StreamName)
	if err != nil {
		return nil, err
	}
	return &Reply{Data: res}, nil
}

// streamerUpdate relays the streamer's playback state to the listeners.
func (d *Dispatcher) streamerUpdate(ctx context.Context, c Caller, f ws.Frame) (*Reply, error) {
	var p streamerUpdatePayload
	if err := d.decode(f.Data, &p); err != nil {
		return nil, err
	}
	u, err := d.caller(ctx, c)
	if err != nil {
		return nil, err
	}
	if u.Activity != models.ActivityStream {
		return nil, errs.Conflict("Only an active streamer can send updates.")
	}
	d.Out.Emit(rooms.RoomName(u.Stream), EventListenerUpdate,
		map[string]any{"stream_data": p.StreamData}, c.ConnID)

	st, err := d.Machine.Status(ctx, c.Username)
	if err != nil {
		return nil, err
	}
	return &Reply{Data: map[string]any{"status": st}}, nil
}

func (d *Dispatcher) djAdd(ctx context.Context, c Caller, f ws.Frame) (*Reply, error) {
	var p djAddPayload
	if err := d.decode(f.Data, &p); err != nil {
		return nil, err
	}
	stream, err := d.queueRights(ctx, c, "Only the streamer or a DJ can add DJs.")
	if err != nil {
		return nil, err
	}
	if _, err := d.Users.GetUser(ctx, p.Who); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("User does not exist.")
		}
		return nil, errs.Upstream(err)
	}
	if _, err := d.Streams.AddDJ(ctx, stream, c.Username, p.Who); err != nil {
		return nil, errs.Upstream(err)
	}

	action, err := d.Chat.AddDJ(ctx, c.Username, stream, p.Who)
	if err != nil {
		return nil, errs.Upstream(err)
	}
	d.Out.Emit(rooms.RoomName(stream), EventChatAction, action)
	d.log.Info("dj added", zap.String("stream", stream), zap.String("by", c.Username), zap.String("who", p.Who))
	return &Reply{Data: action}, nil
}

// queueAdd acknowledges the caller before the room hears about the track.
func (d *Dispatcher) queueAdd(ctx context.Context, c Caller, f ws.Frame) (*Reply, error) {
	var p queueAddPayload
	if err := d.decode(f.Data, &p); err != nil {
		return nil, err
	}
	stream, err := d.queueRights(ctx, c, "Only the streamer or a DJ can queue tracks.")
	if err != nil {
		return nil, err
	}
	ok, err := d.Catalog.VerifyTrack(ctx, c.Username, p.Track)
	if err != nil {
		return nil, errs.Upstream(err)
	}
	if !ok {
		return nil, errs.Validation("Invalid track", models.FieldError{
			Field:   "track",
			Tag:     "track",
			Param:   p.Track,
			Message: "Invalid track",
		})
	}

	action, err := d.Chat.AddQueue(ctx, c.Username, stream, p.Track)
	if err != nil {
		return nil, errs.Upstream(err)
	}
	return &Reply{
		Data: action,
		After: func(context.Context) {
			d.Out.Emit(rooms.RoomName(stream), EventChatAction, action)
		},
	}, nil
}

func (d *Dispatcher) textMessage(ctx context.Context, c Caller, f ws.Frame) (*Reply, error) {
	var p textMessagePayload
	if err := d.decode(f.Data, &p); err != nil {
		return nil, err
	}
	u, err := d.caller(ctx, c)
	if err != nil {
		return nil, err
	}
	if u.Stream == "" {
		return nil, errs.Conflict("Join a stream before chatting.")
	}

	action, err := d.Chat.Message(ctx, c.Username, u.Stream, p.Message)
	if err != nil {
		return nil, errs.Upstream(err)
	}
	d.Out.Emit(rooms.RoomName(u.Stream), EventChatAction, action)
	return &Reply{Data: action}, nil
}

func (d *Dispatcher) caller(ctx context.Context, c Caller) (*models.User, error) {
	u, err := d.Users.GetUser(ctx, c.Username)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.NotFound("Unknown user.")
	}
	if err != nil {
		return nil, errs.Upstream(err)
	}
	return u, nil
}

// queueRights returns the stream the caller may manage as streamer or DJ.
func (d *Dispatcher) queueRights(ctx context.Context, c Caller, denied string) (string, error) {
	u, err := d.caller(ctx, c)
	if err != nil {
		return "", err
	}
	if u.Stream == "" {
		return "", errs.Forbidden(denied)
	}
	st, err := d.Streams.GetStream(ctx, u.Stream)
	if err != nil {
		return "", errs.Upstream(err)
	}
	if !st.Active || !st.CanQueue(c.Username) {
		return "", errs.Forbidden(denied)
	}
	return st.Name, nil
}
