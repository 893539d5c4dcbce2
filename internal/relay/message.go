// Package relay implements the core of patchbay: the game-code pool, the
// pairing registry that joins a telephone call to a waiting game session, and
// the per-connection leg handlers that move messages between the three
// streams (game client, telephony media stream, recognition service).
//
// Concurrency discipline: the [CodePool] and [Registry] are the only shared
// mutable state. Every other structure is owned by exactly one goroutine.
// Registry operations hold their lock only for map and channel-buffer
// mutations, never across network I/O, so a slow game connection can never
// stall the recognition path.
package relay

import "github.com/coder/websocket"

// Message is one unit of relayed data: a websocket frame type plus payload.
type Message struct {
	Type websocket.MessageType
	Data []byte
}

// Text builds a text relay message.
func Text(s string) Message {
	return Message{Type: websocket.MessageText, Data: []byte(s)}
}

// Binary builds a binary relay message.
func Binary(b []byte) Message {
	return Message{Type: websocket.MessageBinary, Data: b}
}
