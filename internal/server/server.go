package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Server is the WebSocket hub: it owns the connection set and fans
// room traffic out to the clients in each room.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	httpServer  *http.Server
	service     *GameService
}

// NewServer creates the hub listening on addr.
func NewServer(addr string, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetService wires the game service that handles client commands.
func (s *Server) SetService(service *GameService) {
	s.service = service
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	go s.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.logger.Info("starting WebSocket server", "addr", s.addr)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the listener down and closes every connection.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// run handles connection lifecycle.
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			_, known := s.connections[conn]
			if known {
				delete(s.connections, conn)
			}
			total := len(s.connections)
			s.mu.Unlock()

			if known {
				// A dead connection mid-hand is treated as a leave:
				// the seat folds through the normal action path.
				userID := conn.GetUser()
				roomID := conn.GetRoom()
				if userID != "" && roomID != "" && s.service != nil {
					s.logger.Info("cleaning up disconnected player", "user", userID, "room", roomID)
					if err := s.service.LeaveRoom(context.Background(), roomID, userID); err != nil {
						s.logger.Debug("disconnect cleanup failed", "user", userID, "err", err)
					}
				}
				_ = conn.Close()
				s.logger.Info("client disconnected", "total", total)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket upgrades an HTTP request to a client connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s.service)
	s.register <- client
	client.Start()

	go func() {
		<-client.ctx.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// BroadcastToRoom sends a message to every connection in a room.
func (s *Server) BroadcastToRoom(roomID string, msg *Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if conn.GetRoom() == roomID {
			if err := conn.SendMessage(msg); err != nil {
				s.logger.Error("failed to send message to client", "error", err, "user", conn.GetUser())
			} else {
				count++
			}
		}
	}

	s.logger.Debug("broadcast to room", "room", roomID, "type", msg.Type, "recipients", count)
}

// SendToUser sends a message to a specific user's connection.
func (s *Server) SendToUser(userID string, msg *Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for conn := range s.connections {
		if conn.GetUser() == userID {
			return conn.SendMessage(msg)
		}
	}
	return fmt.Errorf("user not connected: %s", userID)
}

// ConnectedUsers returns the authenticated users currently connected.
func (s *Server) ConnectedUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []string
	for conn := range s.connections {
		if userID := conn.GetUser(); userID != "" {
			users = append(users, userID)
		}
	}
	return users
}
