package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hakkacheyassin/ft-trans/models"
	"github.com/hakkacheyassin/ft-trans/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type BroadcastMessage struct {
	Data      map[string]interface{}
	ExceptIDs map[string]bool // clients to skip
}

// UserInfo is one entry of a room's online list.
type UserInfo struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// ChatClient is one websocket connection inside a room.
type ChatClient struct {
	ID       string
	UserID   uint
	Username string
	Color    string
	Conn     *websocket.Conn
	Room     *ChatRoom
	Send     chan map[string]interface{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// ChatRoom fans messages out to the connections of one room.
type ChatRoom struct {
	ID         uint
	Clients    map[string]*ChatClient
	mu         sync.RWMutex
	Broadcast  chan *BroadcastMessage
	Register   chan *ChatClient
	Unregister chan *ChatClient
	ctx        context.Context
	cancel     context.CancelFunc
	redis      *redis.Client
}

// ChatRoomManager owns all live rooms. It doubles as the in-process event
// sink: NotifyRoomsChanged pushes room:updated to every connected client.
type ChatRoomManager struct {
	rooms map[uint]*ChatRoom
	mu    sync.RWMutex
	redis *redis.Client
}

func NewChatRoomManager(redisClient *redis.Client) *ChatRoomManager {
	return &ChatRoomManager{
		rooms: make(map[uint]*ChatRoom),
		redis: redisClient,
	}
}

func (m *ChatRoomManager) GetOrCreateRoom(roomID uint) *ChatRoom {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, exists := m.rooms[roomID]; exists {
		return room
	}

	ctx, cancel := context.WithCancel(context.Background())
	room := &ChatRoom{
		ID:         roomID,
		Clients:    make(map[string]*ChatClient),
		Broadcast:  make(chan *BroadcastMessage, 256),
		Register:   make(chan *ChatClient, 16),
		Unregister: make(chan *ChatClient, 16),
		ctx:        ctx,
		cancel:     cancel,
		redis:      m.redis,
	}
	m.rooms[roomID] = room

	go room.run()

	return room
}

// NotifyRoomsChanged implements services.EventSink. No payload: clients only
// learn that room state may have changed and re-fetch.
func (m *ChatRoomManager) NotifyRoomsChanged() {
	msg := map[string]interface{}{
		"type": "room:updated",
	}
	m.mu.RLock()
	rooms := make([]*ChatRoom, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	for _, room := range rooms {
		select {
		case room.Broadcast <- &BroadcastMessage{Data: msg}:
		default:
			// a saturated room drops the wakeup; the next one will catch up
		}
	}
}

// run is the room's message distribution loop.
func (room *ChatRoom) run() {
	for {
		select {
		case <-room.ctx.Done():
			return

		case client := <-room.Register:
			room.mu.Lock()
			room.Clients[client.ID] = client
			room.mu.Unlock()

			room.addUserToRedis(client)

		case client := <-room.Unregister:
			room.mu.Lock()
			if _, ok := room.Clients[client.ID]; ok {
				delete(room.Clients, client.ID)
				close(client.Send)
			}
			room.mu.Unlock()

			room.removeUserFromRedis(client)

		case message := <-room.Broadcast:
			room.mu.RLock()
			clients := make([]*ChatClient, 0, len(room.Clients))
			for _, client := range room.Clients {
				clients = append(clients, client)
			}
			room.mu.RUnlock()

			for _, client := range clients {
				if message.ExceptIDs != nil && message.ExceptIDs[client.ID] {
					continue
				}

				select {
				case client.Send <- message.Data:
				default:
					log.Printf("Client %s send buffer full, disconnecting", client.ID)
					room.Unregister <- client
				}
			}
		}
	}
}

func (room *ChatRoom) onlineUsersKey() string {
	return fmt.Sprintf("chat:room:%d:online_users", room.ID)
}

func (room *ChatRoom) addUserToRedis(client *ChatClient) {
	ctx := context.Background()
	key := room.onlineUsersKey()

	userInfo := UserInfo{
		UserID:   client.UserID,
		Username: client.Username,
		Color:    client.Color,
	}
	data, err := json.Marshal(userInfo)
	if err != nil {
		log.Printf("Failed to marshal user info: %v", err)
		return
	}

	field := strconv.FormatUint(uint64(client.UserID), 10)
	if err := room.redis.HSet(ctx, key, field, data).Err(); err != nil {
		log.Printf("Failed to add user to Redis: %v", err)
		return
	}
	room.redis.Expire(ctx, key, 24*time.Hour)
}

func (room *ChatRoom) removeUserFromRedis(client *ChatClient) {
	ctx := context.Background()
	key := room.onlineUsersKey()

	// other connections of the same user keep the entry alive
	room.mu.RLock()
	hasOtherConnection := false
	for _, c := range room.Clients {
		if c.UserID == client.UserID && c.ID != client.ID {
			hasOtherConnection = true
			break
		}
	}
	room.mu.RUnlock()

	if !hasOtherConnection {
		field := strconv.FormatUint(uint64(client.UserID), 10)
		if err := room.redis.HDel(ctx, key, field).Err(); err != nil {
			log.Printf("Failed to remove user from Redis: %v", err)
		}
	}
}

func (room *ChatRoom) GetOnlineUsersFromRedis() ([]UserInfo, error) {
	ctx := context.Background()

	result, err := room.redis.HGetAll(ctx, room.onlineUsersKey()).Result()
	if err != nil {
		return nil, err
	}

	users := make([]UserInfo, 0, len(result))
	for _, data := range result {
		var userInfo UserInfo
		if err := json.Unmarshal([]byte(data), &userInfo); err != nil {
			log.Printf("Failed to unmarshal user info: %v", err)
			continue
		}
		users = append(users, userInfo)
	}
	return users, nil
}

type ChatWebSocketHandler struct {
	db          *gorm.DB
	redis       *redis.Client
	repo        services.RoomRepository
	roomManager *ChatRoomManager
	dbQueue     chan *models.Message
	dbWorkers   int
}

func NewChatWebSocketHandler(db *gorm.DB, redisClient *redis.Client, repo services.RoomRepository) *ChatWebSocketHandler {
	h := &ChatWebSocketHandler{
		db:          db,
		redis:       redisClient,
		repo:        repo,
		roomManager: NewChatRoomManager(redisClient),
		dbQueue:     make(chan *models.Message, 1000),
		dbWorkers:   4,
	}

	for i := 0; i < h.dbWorkers; i++ {
		go h.dbWorker()
	}

	return h
}

// RoomManager exposes the hub so it can be wired as the in-process event
// sink.
func (h *ChatWebSocketHandler) RoomManager() *ChatRoomManager {
	return h.roomManager
}

func (h *ChatWebSocketHandler) dbWorker() {
	for message := range h.dbQueue {
		if err := h.db.Create(message).Error; err != nil {
			log.Printf("Failed to save message: %v", err)
		}
	}
}

// HandleWebSocket upgrades the connection after verifying the caller has a
// non-banned membership in the room.
func (h *ChatWebSocketHandler) HandleWebSocket(c echo.Context) error {
	user := c.Get("user").(*models.User)
	roomID64, err := strconv.ParseUint(c.Param("roomId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	roomID := uint(roomID64)

	membership, err := h.repo.FindMembership(c.Request().Context(), roomID, user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to verify membership"})
	}
	if membership == nil || membership.Banned {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "you are not in this room"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &ChatClient{
		ID:       uuid.New().String(),
		UserID:   user.ID,
		Username: user.Username,
		Color:    getUserColor(user.ID),
		Conn:     ws,
		Send:     make(chan map[string]interface{}, 256),
		ctx:      ctx,
		cancel:   cancel,
	}

	room := h.roomManager.GetOrCreateRoom(roomID)
	client.Room = room

	room.Register <- client

	h.sendInitData(client, room)
	h.broadcastUserJoined(room, client)
	h.sendSystemMessage(room, client, "joined")

	go h.writePump(client)
	h.readPump(client)

	return nil
}

func (h *ChatWebSocketHandler) readPump(client *ChatClient) {
	defer func() {
		client.cancel()
		client.Room.Unregister <- client
		client.Conn.Close()

		h.broadcastUserLeft(client.Room, client)
		h.sendSystemMessage(client.Room, client, "left")
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg map[string]interface{}
		err := client.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleMessage(client, msg)
	}
}

func (h *ChatWebSocketHandler) writePump(client *ChatClient) {
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
				log.Printf("WriteJSON error: %v", err)
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

func (h *ChatWebSocketHandler) sendInitData(client *ChatClient, room *ChatRoom) {
	users, err := room.GetOnlineUsersFromRedis()
	if err != nil {
		log.Printf("Failed to get online users from Redis: %v", err)
		users = []UserInfo{}
	}

	initMsg := map[string]interface{}{
		"type": "init",
		"payload": map[string]interface{}{
			"users": users,
		},
	}

	client.Send <- initMsg
}

func (h *ChatWebSocketHandler) sendSystemMessage(room *ChatRoom, client *ChatClient, action string) {
	var content string
	if action == "joined" {
		content = client.Username + " joined the room"
	} else if action == "left" {
		content = client.Username + " left the room"
	}
	systemMsg := map[string]interface{}{
		"type": "message",
		"payload": map[string]interface{}{
			"id":         uuid.New().String(),
			"room_id":    room.ID,
			"type":       "system",
			"content":    content,
			"created_at": time.Now(),
		},
	}

	room.Broadcast <- &BroadcastMessage{
		Data: systemMsg,
	}
}

func (h *ChatWebSocketHandler) handleMessage(client *ChatClient, msg map[string]interface{}) {
	msgType, ok := msg["type"].(string)
	if !ok {
		return
	}

	payload, _ := msg["payload"].(map[string]interface{})

	switch msgType {
	case "message":
		h.handleChatMessage(client, payload)
	case "typing":
		h.handleTyping(client, payload)
	}
}

func (h *ChatWebSocketHandler) handleChatMessage(client *ChatClient, payload map[string]interface{}) {
	content, ok := payload["content"].(string)
	if !ok || content == "" {
		return
	}

	// re-read the membership: a mute or ban applied after connect takes
	// effect on the next message
	membership, err := h.repo.FindMembership(client.ctx, client.Room.ID, client.UserID)
	if err != nil || membership == nil || membership.Banned || membership.MutedAt(time.Now()) {
		client.Send <- map[string]interface{}{
			"type": "error",
			"payload": map[string]interface{}{
				"error": "you cannot speak in this room",
			},
		}
		return
	}

	now := time.Now()
	message := models.Message{
		RoomID:    client.Room.ID,
		UserID:    client.UserID,
		Content:   content,
		Type:      "text",
		CreatedAt: now,
	}

	// async persistence; the broadcast never waits for the database
	select {
	case h.dbQueue <- &message:
	default:
		log.Println("Database queue full, dropping message")
	}

	broadcastMsg := map[string]interface{}{
		"type": "message",
		"payload": map[string]interface{}{
			"id":         message.ID,
			"room_id":    message.RoomID,
			"user_id":    client.UserID,
			"username":   client.Username,
			"user_color": client.Color,
			"content":    content,
			"type":       "text",
			"created_at": now,
		},
	}

	client.Room.Broadcast <- &BroadcastMessage{
		Data: broadcastMsg,
	}
}

func (h *ChatWebSocketHandler) handleTyping(client *ChatClient, payload map[string]interface{}) {
	isTyping, ok := payload["is_typing"].(bool)
	if !ok {
		return
	}

	typingMsg := map[string]interface{}{
		"type": "typing",
		"payload": map[string]interface{}{
			"user_id":   client.UserID,
			"username":  client.Username,
			"is_typing": isTyping,
		},
	}

	client.Room.Broadcast <- &BroadcastMessage{
		Data:      typingMsg,
		ExceptIDs: map[string]bool{client.ID: true},
	}
}

func (h *ChatWebSocketHandler) broadcastUserJoined(room *ChatRoom, client *ChatClient) {
	msg := map[string]interface{}{
		"type": "user_joined",
		"payload": map[string]interface{}{
			"user_id":  client.UserID,
			"username": client.Username,
			"color":    client.Color,
		},
	}

	room.Broadcast <- &BroadcastMessage{
		Data:      msg,
		ExceptIDs: map[string]bool{client.ID: true},
	}
}

func (h *ChatWebSocketHandler) broadcastUserLeft(room *ChatRoom, client *ChatClient) {
	msg := map[string]interface{}{
		"type": "user_left",
		"payload": map[string]interface{}{
			"user_id":  client.UserID,
			"username": client.Username,
		},
	}

	room.Broadcast <- &BroadcastMessage{
		Data: msg,
	}
}

// requireMembership resolves the roomId param and verifies the caller holds a
// non-banned membership, the same gate HandleWebSocket applies before
// upgrading. Writes the error response itself; a zero room ID means the
// request is already answered.
func (h *ChatWebSocketHandler) requireMembership(c echo.Context) (uint, error) {
	user := c.Get("user").(*models.User)
	roomID64, err := strconv.ParseUint(c.Param("roomId"), 10, 64)
	if err != nil {
		return 0, c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	roomID := uint(roomID64)

	membership, err := h.repo.FindMembership(c.Request().Context(), roomID, user.ID)
	if err != nil {
		return 0, c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to verify membership"})
	}
	if membership == nil || membership.Banned {
		return 0, c.JSON(http.StatusForbidden, map[string]string{"error": "you are not in this room"})
	}
	return roomID, nil
}

// GetOnlineUsers returns the room's online list from Redis. Members only.
func (h *ChatWebSocketHandler) GetOnlineUsers(c echo.Context) error {
	roomID, err := h.requireMembership(c)
	if roomID == 0 {
		return err
	}

	ctx := context.Background()
	key := fmt.Sprintf("chat:room:%d:online_users", roomID)

	result, err := h.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch online users",
		})
	}
	users := make([]UserInfo, 0, len(result))
	for _, data := range result {
		var userInfo UserInfo
		if err := json.Unmarshal([]byte(data), &userInfo); err != nil {
			log.Printf("Failed to unmarshal user info: %v", err)
			continue
		}
		users = append(users, userInfo)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"room_id": roomID,
		"count":   len(users),
		"users":   users,
	})
}

// GetMessages returns the chat history of a room, oldest first. Members only.
func (h *ChatWebSocketHandler) GetMessages(c echo.Context) error {
	roomID, err := h.requireMembership(c)
	if roomID == 0 {
		return err
	}

	limit := 50
	offset := 0
	if c.QueryParam("offset") != "" {
		fmt.Sscanf(c.QueryParam("offset"), "%d", &offset)
	}

	var messages []struct {
		models.Message
		Username string `json:"username"`
	}

	err = h.db.Raw(`
		SELECT messages.*, users.username
		FROM messages
		LEFT JOIN users ON messages.user_id = users.id
		WHERE messages.room_id = ?
		ORDER BY messages.created_at ASC
		LIMIT ? OFFSET ?
	`, roomID, limit, offset).Scan(&messages).Error

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch messages",
		})
	}

	return c.JSON(http.StatusOK, messages)
}

func getUserColor(userID uint) string {
	colors := []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8", "#F7DC6F", "#BB8FCE"}
	return colors[userID%uint(len(colors))]
}
