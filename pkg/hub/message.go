// Package hub provides a thread-safe websocket broadcast hub using the
// channel-based fan-out pattern. The dashboard subscribes to it for session
// events and audio visualization frames.
package hub

// MessageType indicates the websocket message format.
type MessageType int

const (
	// JSONMessage is a JSON-encoded event.
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (audio visualization frames).
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON bytes.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
