package models

import "time"

// Stream is a named listening session owned by one streamer.
// A stream is never deleted; stopping it only clears Active and Listeners.
type Stream struct {
	Name      string    `json:"name"`     // Unique, human chosen
	Streamer  string    `json:"streamer"` // Username of the streamer
	Active    bool      `json:"active"`
	Listeners []string  `json:"listeners"` // Usernames, no duplicates
	DJ        []string  `json:"dj"`        // Usernames granted queue privileges
	Date      time.Time `json:"date"`      // Created or last started
}

// IsDJ reports whether username was granted DJ rights on the stream.
func (s *Stream) IsDJ(username string) bool {
	return contains(s.DJ, username)
}

// IsListener reports whether username is currently listening.
func (s *Stream) IsListener(username string) bool {
	return contains(s.Listeners, username)
}

// CanQueue reports whether username may add DJs or queue tracks.
func (s *Stream) CanQueue(username string) bool {
	return s.Streamer == username || s.IsDJ(username)
}

// Status is the read projection sent to clients on every state change.
type Status struct {
	Activity Activity `json:"activity"`
	Username *string  `json:"username"`
	Stream   *string  `json:"stream"`
	Listener *int     `json:"listener"`
}

// AnonymousStatus is reported to connections without an identity.
func AnonymousStatus() Status {
	return Status{Activity: ActivityNone}
}

// Notice is a short human readable outcome attached to acknowledgements.
type Notice struct {
	Text   string  `json:"text"`
	Status string  `json:"status"` // "OK" or "ERROR"
	Time   float64 `json:"time"`   // Unix seconds
}

// NewNotice stamps text with the current time.
func NewNotice(text string, ok bool) Notice {
	status := "ERROR"
	if ok {
		status = "OK"
	}
	return Notice{Text: text, Status: status, Time: float64(time.Now().UnixMilli()) / 1000}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
