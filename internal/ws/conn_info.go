package ws

import "time"

// ConnInfo carries the metadata attached to one websocket connection.
type ConnInfo struct {
	ConnID      string
	UserID      string
	UserName    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
