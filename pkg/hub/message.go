// Package hub fans session events out to any number of websocket
// observers using a channel-based broadcast loop.
package hub

// Message is one pre-encoded JSON event.
type Message struct {
	// Session is the originating session ID; empty reaches every client.
	Session string
	Data    []byte
}

// NewEventMessage wraps an encoded event from the given session.
func NewEventMessage(session string, data []byte) Message {
	return Message{Session: session, Data: data}
}

// wants reports whether a client following session should get m.
func (m Message) wants(session string) bool {
	return session == "" || m.Session == "" || m.Session == session
}
