package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType discriminates the ChatAction variants on the wire and in storage.
type ActionType string

const (
	ActionMessage  ActionType = "message"
	ActionAddDJ    ActionType = "add_dj"
	ActionAddQueue ActionType = "add_queue"
	ActionError    ActionType = "error"
)

// MaxMessageLength bounds the text of a chat message, in characters.
const MaxMessageLength = 231

// ActionBody is implemented by every ChatAction variant.
type ActionBody interface {
	ActionType() ActionType
}

// Message is a chat line.
type Message struct {
	Text string `json:"message"`
}

// DJAdd records that Who was granted DJ rights.
type DJAdd struct {
	Who string `json:"who"`
}

// QueueAdd records a track added to the stream queue.
type QueueAdd struct {
	Track string `json:"track"`
}

// FieldError describes one failed payload constraint.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ErrorBody is sent to a single connection only and never stored.
type ErrorBody struct {
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

func (Message) ActionType() ActionType   { return ActionMessage }
func (DJAdd) ActionType() ActionType     { return ActionAddDJ }
func (QueueAdd) ActionType() ActionType  { return ActionAddQueue }
func (ErrorBody) ActionType() ActionType { return ActionError }

// ChatAction is an append-only entry of a stream's chat log.
type ChatAction struct {
	ID     string
	Sender string
	Stream string // empty for local errors
	Date   time.Time
	Body   ActionBody
}

// Type returns the variant discriminator, or "" when Body is unset.
func (a *ChatAction) Type() ActionType {
	if a.Body == nil {
		return ""
	}
	return a.Body.ActionType()
}

type actionHeader struct {
	ID         string     `json:"id,omitempty"`
	ActionType ActionType `json:"action_type"`
	Sender     string     `json:"sender,omitempty"`
	Stream     string     `json:"stream,omitempty"`
	Date       time.Time  `json:"date"`
}

// MarshalJSON flattens the header and the variant fields into one object.
func (a ChatAction) MarshalJSON() ([]byte, error) {
	if a.Body == nil {
		return nil, fmt.Errorf("chat action %q has no body", a.ID)
	}
	head, err := json.Marshal(actionHeader{
		ID:         a.ID,
		ActionType: a.Body.ActionType(),
		Sender:     a.Sender,
		Stream:     a.Stream,
		Date:       a.Date,
	})
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(a.Body)
	if err != nil {
		return nil, err
	}
	if len(body) <= 2 { // "{}"
		return head, nil
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// UnmarshalJSON picks the variant from action_type.
func (a *ChatAction) UnmarshalJSON(data []byte) error {
	var head actionHeader
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	body, err := NewActionBody(head.ActionType)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, body); err != nil {
		return err
	}
	a.ID = head.ID
	a.Sender = head.Sender
	a.Stream = head.Stream
	a.Date = head.Date
	a.Body = derefBody(body)
	return nil
}

// NewActionBody returns a pointer to an empty variant for t.
func NewActionBody(t ActionType) (ActionBody, error) {
	switch t {
	case ActionMessage:
		return &Message{}, nil
	case ActionAddDJ:
		return &DJAdd{}, nil
	case ActionAddQueue:
		return &QueueAdd{}, nil
	case ActionError:
		return &ErrorBody{}, nil
	}
	return nil, fmt.Errorf("unknown action type %q", t)
}

func derefBody(b ActionBody) ActionBody {
	switch v := b.(type) {
	case *Message:
		return *v
	case *DJAdd:
		return *v
	case *QueueAdd:
		return *v
	case *ErrorBody:
		return *v
	}
	return b
}
