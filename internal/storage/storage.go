// Package storage defines the persistence contracts of the listen party core.
// Every mutation is a guarded, field-level update so concurrent transitions on
// the same record cannot lose writes.
package storage

import (
	"context"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/models"
)

// UserStore persists users. Lookups of unknown users return errs.ErrNotFound.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
	// UpsertUser creates the user or refreshes its profile fields.
	// Activity and stream of an existing user are left untouched.
	UpsertUser(ctx context.Context, u *models.User) error
	// SwapParticipation sets the user's activity and stream to `to` only if
	// they currently equal `from`. It reports whether the swap happened.
	SwapParticipation(ctx context.Context, username string, from, to models.Participation) (bool, error)
	// ResetListeners returns the given users to idle while they still listen
	// to stream. Users that moved on, or stream it, are left alone.
	ResetListeners(ctx context.Context, stream string, usernames []string) (int64, error)
	SaveToken(ctx context.Context, username string, sealed []byte) error
}

// StreamStore persists streams. Lookups of unknown streams return errs.ErrNotFound.
type StreamStore interface {
	GetStream(ctx context.Context, name string) (*models.Stream, error)
	// ClaimStream activates name for streamer, creating it when missing.
	// It fails with errs.ErrConflict if the stream is active under another
	// streamer. Claiming an inactive stream of another user resets its DJ set.
	ClaimStream(ctx context.Context, name, streamer string, now time.Time) (*models.Stream, error)
	// ReleaseStream deactivates the stream if streamer still owns it and
	// returns the listeners it had.
	ReleaseStream(ctx context.Context, name, streamer string) ([]string, error)
	// AddListener pushes username to an active stream. errs.ErrNotFound
	// when no active stream has that name, errs.ErrConflict when username
	// is its streamer.
	AddListener(ctx context.Context, name, username string) (*models.Stream, error)
	RemoveListener(ctx context.Context, name, username string) (*models.Stream, error)
	// AddDJ grants who DJ rights when granter is the streamer or a DJ of
	// the active stream. errs.ErrForbidden / errs.ErrConflict otherwise.
	AddDJ(ctx context.Context, name, granter, who string) (*models.Stream, error)
	ListActiveStreams(ctx context.Context, offset, limit int) ([]*models.Stream, int, error)
}

// ActionStore is the append-only chat log.
type ActionStore interface {
	AppendAction(ctx context.Context, a *models.ChatAction) error
	// ListActions returns the latest limit actions of stream, oldest first.
	ListActions(ctx context.Context, stream string, limit int) ([]*models.ChatAction, error)
}

// Store bundles the three record stores of one backend.
type Store interface {
	UserStore
	StreamStore
	ActionStore
	Close() error
}
