package models

import "strings"

// Activity is the mutually exclusive participation state of a user.
type Activity string

const (
	ActivityNone   Activity = "NONE"
	ActivityStream Activity = "STREAM"
	ActivityListen Activity = "LISTEN"
)

// ParseActivity maps a stored value back to an Activity. Unknown values are
// treated as ActivityNone.
func ParseActivity(s string) Activity {
	switch Activity(strings.ToUpper(s)) {
	case ActivityStream:
		return ActivityStream
	case ActivityListen:
		return ActivityListen
	default:
		return ActivityNone
	}
}

// User is an authenticated identity together with its current session state.
type User struct {
	Username    string   `json:"username"`               // Provider account id, unique
	DisplayName string   `json:"display_name,omitempty"` // Optional provider display name
	Img         string   `json:"img,omitempty"`          // Optional avatar URL
	Activity    Activity `json:"activity"`
	Stream      string   `json:"stream,omitempty"` // Name of the stream the user participates in, empty when idle

	// SealedToken is the encrypted provider token. Never serialized.
	SealedToken []byte `json:"-"`
}

// Name returns the display name when set, the username otherwise.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Participation returns the (activity, stream) pair guarded by the state machine.
func (u *User) Participation() Participation {
	return Participation{Activity: u.Activity, Stream: u.Stream}
}

// Participation is the part of a user record that transitions atomically.
// Activity is ActivityNone exactly when Stream is empty.
type Participation struct {
	Activity Activity
	Stream   string
}

// Idle is the zero participation.
var Idle = Participation{Activity: ActivityNone}

// Streaming returns the participation of the streamer of name.
func Streaming(name string) Participation {
	return Participation{Activity: ActivityStream, Stream: name}
}

// Listening returns the participation of a listener of name.
func Listening(name string) Participation {
	return Participation{Activity: ActivityListen, Stream: name}
}

// Token is an OAuth token issued by the music provider.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // Unix seconds
}
