package server

import (
	"encoding/json"
	"time"

	"github.com/lox/cardroom/internal/game"
)

// Message is the wire envelope for every WebSocket frame in either
// direction.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in an envelope with the current timestamp.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// eventMessage wraps a game event, keyed by the event's own type.
func eventMessage(event game.Event) (*Message, error) {
	dataBytes, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      MessageType(event.EventType()),
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server payloads

type AuthData struct {
	UserID string `json:"user_id"`
}

type JoinRoomData struct {
	RoomID string `json:"room_id"`
	BuyIn  int    `json:"buy_in,omitempty"`
}

type LeaveRoomData struct {
	RoomID string `json:"room_id"`
}

type StartGameData struct {
	RoomID string `json:"room_id"`
}

type PlayerActionData struct {
	RoomID string `json:"room_id"`
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

type ChatData struct {
	RoomID string `json:"room_id"`
	Text   string `json:"text"`
}

// Server → Client payloads

type AuthResponseData struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomJoinedData struct {
	RoomID  string            `json:"room_id"`
	Seat    int               `json:"seat"`
	Stack   int               `json:"stack"`
	Variant string            `json:"variant"`
	View    game.PrivateState `json:"view"`
}

type RoomLeftData struct {
	RoomID string `json:"room_id"`
}

type PlayerJoinedData struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Seat   int    `json:"seat"`
	Stack  int    `json:"stack"`
}

type PlayerLeftData struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Seat   int    `json:"seat"`
}

type ChatRelayData struct {
	RoomID string    `json:"room_id"`
	UserID string    `json:"user_id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}
