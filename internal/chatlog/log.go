// Package chatlog appends chat, DJ and queue records to a stream's log.
package chatlog

import (
	"context"
	"fmt"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/storage"
	"github.com/google/uuid"
)

// DefaultHistory is the number of records History returns when asked for none.
const DefaultHistory = 50

type Log struct {
	store storage.ActionStore
	now   func() time.Time
}

func New(store storage.ActionStore) *Log {
	return &Log{store: store, now: time.Now}
}

// Message records a chat line of sender.
func (l *Log) Message(ctx context.Context, sender, stream, text string) (*models.ChatAction, error) {
	return l.append(ctx, sender, stream, models.Message{Text: text})
}

// AddDJ records that sender granted who DJ rights.
func (l *Log) AddDJ(ctx context.Context, sender, stream, who string) (*models.ChatAction, error) {
	return l.append(ctx, sender, stream, models.DJAdd{Who: who})
}

// AddQueue records a track queued by sender.
func (l *Log) AddQueue(ctx context.Context, sender, stream, track string) (*models.ChatAction, error) {
	return l.append(ctx, sender, stream, models.QueueAdd{Track: track})
}

func (l *Log) append(ctx context.Context, sender, stream string, body models.ActionBody) (*models.ChatAction, error) {
	a := &models.ChatAction{
		ID:     uuid.NewString(),
		Sender: sender,
		Stream: stream,
		Date:   l.now().UTC(),
		Body:   body,
	}
	if err := l.store.AppendAction(ctx, a); err != nil {
		return nil, fmt.Errorf("append %s to %s: %w", body.ActionType(), stream, err)
	}
	return a, nil
}

// History returns up to limit records of stream, newest last.
func (l *Log) History(ctx context.Context, stream string, limit int) ([]*models.ChatAction, error) {
	if limit <= 0 {
		limit = DefaultHistory
	}
	actions, err := l.store.ListActions(ctx, stream, limit)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", stream, err)
	}
	return actions, nil
}
