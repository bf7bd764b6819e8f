package ws

import "encoding/json"

// Frame is one inbound message: an event name, its payload, and an optional
// acknowledgement id the client waits on.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

// AckEvent is the event name of acknowledgement frames.
const AckEvent = "ack"

type outFrame struct {
	Event string `json:"event"`
	Ack   *int64 `json:"ack,omitempty"`
	Data  any    `json:"data,omitempty"`
}

func encode(event string, ack *int64, data any) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Ack: ack, Data: data})
}
