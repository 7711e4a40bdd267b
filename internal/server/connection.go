package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	shutdownTimeout = 5 * time.Second
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one client's WebSocket.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	userID    string
	roomID    string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	service   *GameService
}

// NewConnection creates a connection wrapper.
func NewConnection(conn *websocket.Conn, logger *log.Logger, service *GameService) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 256),
		logger:  logger.WithPrefix("conn"),
		ctx:     ctx,
		cancel:  cancel,
		service: service,
	}
}

// Start begins handling the connection.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel closed during shutdown.
			c.logger.Debug("attempted to send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetUser associates this connection with an authenticated user.
func (c *Connection) SetUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// GetUser returns the associated user id.
func (c *Connection) GetUser() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// SetRoom associates this connection with a room.
func (c *Connection) SetRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

// GetRoom returns the associated room id.
func (c *Connection) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

// readPump handles incoming messages from the client.
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches an inbound message.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "type", msg.Type, "user", c.GetUser())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse auth data")
			return
		}
		c.handleAuth(data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse join room data")
			return
		}
		c.handleJoinRoom(data)

	case MessageTypeLeaveRoom:
		var data LeaveRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse leave room data")
			return
		}
		c.handleLeaveRoom(data)

	case MessageTypeStartGame:
		var data StartGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse start game data")
			return
		}
		c.handleStartGame(data)

	case MessageTypePlayerAction:
		var data PlayerActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse player action data")
			return
		}
		c.handlePlayerAction(data)

	case MessageTypeChat:
		var data ChatData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse chat data")
			return
		}
		c.handleChat(data)

	default:
		c.sendError("unknown_message_type", "unknown message type: "+msg.Type.String())
	}
}

// sendError sends an error message to the client.
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	_ = c.SendMessage(errorMsg)
}

// sendServiceError maps a service failure onto the error payload,
// preserving the stable code of validation rejections.
func (c *Connection) sendServiceError(fallbackCode string, err error) {
	var verr *game.ValidationError
	if errors.As(err, &verr) {
		c.sendError(verr.Code, verr.Message)
		return
	}
	if errors.Is(err, ErrGameInProgress) {
		c.sendError("game_in_progress", err.Error())
		return
	}
	c.sendError(fallbackCode, err.Error())
}

func (c *Connection) handleAuth(data AuthData) {
	c.logger.Info("auth request", "user", data.UserID)

	// Identity is claim-based; an authentication provider sits in
	// front of this server in production.
	if data.UserID == "" {
		c.sendError("invalid_auth", "user id required")
		return
	}

	c.SetUser(data.UserID)

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success: true,
		UserID:  data.UserID,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) requireAuth() (string, bool) {
	if c.service == nil {
		c.sendError("service_unavailable", "game service not available")
		return "", false
	}
	userID := c.GetUser()
	if userID == "" {
		c.sendError("not_authenticated", "must authenticate first")
		return "", false
	}
	return userID, true
}

func (c *Connection) handleJoinRoom(data JoinRoomData) {
	c.logger.Info("join room request", "room", data.RoomID, "user", c.GetUser())

	userID, ok := c.requireAuth()
	if !ok {
		return
	}

	joined, err := c.service.JoinRoom(c.ctx, data.RoomID, userID, data.BuyIn)
	if err != nil {
		c.sendServiceError("join_failed", err)
		return
	}

	c.SetRoom(data.RoomID)

	response, _ := NewMessage(MessageTypeRoomJoined, joined)
	_ = c.SendMessage(response)
}

func (c *Connection) handleLeaveRoom(data LeaveRoomData) {
	c.logger.Info("leave room request", "room", data.RoomID, "user", c.GetUser())

	userID, ok := c.requireAuth()
	if !ok {
		return
	}

	if err := c.service.LeaveRoom(c.ctx, data.RoomID, userID); err != nil {
		c.sendServiceError("leave_failed", err)
		return
	}

	c.SetRoom("")

	response, _ := NewMessage(MessageTypeRoomLeft, RoomLeftData{RoomID: data.RoomID})
	_ = c.SendMessage(response)
}

func (c *Connection) handleStartGame(data StartGameData) {
	c.logger.Info("start game request", "room", data.RoomID, "user", c.GetUser())

	userID, ok := c.requireAuth()
	if !ok {
		return
	}

	if err := c.service.StartGame(data.RoomID, userID); err != nil {
		c.sendServiceError("start_failed", err)
	}
	// No direct response: the session broadcasts round-started.
}

func (c *Connection) handlePlayerAction(data PlayerActionData) {
	c.logger.Debug("player action", "room", data.RoomID, "user", c.GetUser(),
		"action", data.Action, "amount", data.Amount)

	userID, ok := c.requireAuth()
	if !ok {
		return
	}

	if err := c.service.HandleAction(data.RoomID, userID, data.Action, data.Amount); err != nil {
		c.sendServiceError("action_failed", err)
	}
}

func (c *Connection) handleChat(data ChatData) {
	userID, ok := c.requireAuth()
	if !ok {
		return
	}

	if err := c.service.Chat(data.RoomID, userID, data.Text); err != nil {
		c.sendServiceError("chat_failed", err)
	}
}
