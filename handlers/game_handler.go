package handlers

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hakkacheyassin/ft-trans/game"
	"github.com/hakkacheyassin/ft-trans/models"
)

const gameTickInterval = 50 * time.Millisecond

// GameClient is one player or spectator connection in a match.
type GameClient struct {
	ID       string
	UserID   uint
	Username string
	Side     game.Side // SideNone for spectators
	Conn     *websocket.Conn
	Send     chan interface{}
	cancel   context.CancelFunc
	ctx      context.Context
}

// GameSession runs one pong match: two player slots, any number of
// spectators, a fixed-rate simulation loop.
type GameSession struct {
	ID      string
	match   *game.Match
	clients map[string]*GameClient
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

type GameSessionManager struct {
	sessions map[string]*GameSession
	mu       sync.Mutex
}

func NewGameSessionManager() *GameSessionManager {
	return &GameSessionManager{
		sessions: make(map[string]*GameSession),
	}
}

func (m *GameSessionManager) GetOrCreateSession(id string) *GameSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, exists := m.sessions[id]; exists {
		return session
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &GameSession{
		ID:      id,
		match:   game.NewMatch(time.Now().UnixNano()),
		clients: make(map[string]*GameClient),
		ctx:     ctx,
		cancel:  cancel,
	}
	m.sessions[id] = session

	go session.run()
	go m.reapWhenOver(session)

	return session
}

func (m *GameSessionManager) reapWhenOver(session *GameSession) {
	<-session.ctx.Done()
	m.mu.Lock()
	delete(m.sessions, session.ID)
	m.mu.Unlock()
}

// join assigns the first free paddle, or spectator when both are taken.
func (s *GameSession) join(client *GameClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := map[game.Side]bool{}
	for _, c := range s.clients {
		taken[c.Side] = true
	}
	switch {
	case !taken[game.SideLeft]:
		client.Side = game.SideLeft
	case !taken[game.SideRight]:
		client.Side = game.SideRight
	default:
		client.Side = game.SideNone
	}
	s.clients[client.ID] = client
}

func (s *GameSession) leave(client *GameClient) {
	s.mu.Lock()
	if _, ok := s.clients[client.ID]; ok {
		delete(s.clients, client.ID)
		close(client.Send)
	}
	empty := len(s.clients) == 0
	s.mu.Unlock()

	if empty {
		s.cancel()
	}
}

// run is the simulation loop: one frame per tick to every connection.
func (s *GameSession) run() {
	ticker := time.NewTicker(gameTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			frame := s.match.Tick()
			msg := map[string]interface{}{
				"type":    "frame",
				"payload": frame,
			}

			s.mu.Lock()
			clients := make([]*GameClient, 0, len(s.clients))
			for _, c := range s.clients {
				clients = append(clients, c)
			}
			s.mu.Unlock()

			for _, client := range clients {
				select {
				case client.Send <- msg:
				default:
					log.Printf("Game client %s send buffer full, disconnecting", client.ID)
					s.leave(client)
				}
			}
		}
	}
}

type GameHandler struct {
	sessions *GameSessionManager
}

func NewGameHandler() *GameHandler {
	return &GameHandler{sessions: NewGameSessionManager()}
}

// HandleWebSocket attaches the caller to a match. The first two connections
// get the paddles; later ones spectate.
func (h *GameHandler) HandleWebSocket(c echo.Context) error {
	user := c.Get("user").(*models.User)
	sessionID := c.Param("id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid game ID"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &GameClient{
		ID:       uuid.New().String(),
		UserID:   user.ID,
		Username: user.Username,
		Conn:     ws,
		Send:     make(chan interface{}, 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	session := h.sessions.GetOrCreateSession(sessionID)
	session.join(client)

	client.Send <- map[string]interface{}{
		"type": "joined",
		"payload": map[string]interface{}{
			"side": client.Side,
		},
	}

	go h.writePump(client)
	h.readPump(session, client)

	return nil
}

func (h *GameHandler) readPump(session *GameSession, client *GameClient) {
	defer func() {
		client.cancel()
		session.leave(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg struct {
			Type    string `json:"type"`
			Payload struct {
				Y float64 `json:"y"`
			} `json:"payload"`
		}
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Game WebSocket error: %v", err)
			}
			break
		}
		if msg.Type == "paddle" && client.Side != game.SideNone {
			session.match.MovePaddle(client.Side, msg.Payload.Y)
		}
	}
}

func (h *GameHandler) writePump(client *GameClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case <-client.ctx.Done():
			return

		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(message); err != nil {
				log.Printf("Game WriteJSON error: %v", err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
