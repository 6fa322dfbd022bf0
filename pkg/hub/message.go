// Package hub fans frames and status messages out to websocket clients
// using a single goroutine that owns the client set.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded status message
	JSONMessage MessageType = iota
	// BinaryMessage is one JPEG frame
	BinaryMessage
)

// Message is one broadcast unit.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewFrameMessage wraps a JPEG frame.
func NewFrameMessage(jpeg []byte) Message {
	return Message{Type: BinaryMessage, Data: jpeg}
}

// Droppable reports whether a slow client may miss this message.
// Frames are superseded by the next one; status messages are not.
func (m Message) Droppable() bool {
	return m.Type == BinaryMessage
}
