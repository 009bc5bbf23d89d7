package notify

import "time"

// Event is the wire shape posted to each webhook target.
type Event struct {
	Channel   string    `json:"channel"`
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type pushJob struct {
	URL     string
	Body    []byte
	Attempt int
}
