package server

// Note: game events (round-started, game-ended, etc.) are defined in
// internal/game/events.go and are forwarded as messages of the same
// type.

// MessageType identifies a WebSocket message.
type MessageType string

const (
	// Client to server messages
	MessageTypeAuth         MessageType = "auth"
	MessageTypeJoinRoom     MessageType = "join-room"
	MessageTypeLeaveRoom    MessageType = "leave-room"
	MessageTypeStartGame    MessageType = "start-game"
	MessageTypePlayerAction MessageType = "player-action"
	MessageTypeChat         MessageType = "chat"

	// Server to client messages
	MessageTypeAuthResponse MessageType = "auth-response"
	MessageTypeRoomJoined   MessageType = "room-joined"
	MessageTypeRoomLeft     MessageType = "room-left"
	MessageTypePlayerJoined MessageType = "player-joined"
	MessageTypePlayerLeft   MessageType = "player-left"
	MessageTypeChatRelay    MessageType = "chat-message"
	MessageTypeError        MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}
