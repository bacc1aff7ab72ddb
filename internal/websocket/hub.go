package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/events"
	"github.com/thereayou/roomgate/internal/models"
)

// MessageType определяет типы сообщений
type MessageType string

const (
	// Системные типы
	TypeConnect MessageType = "connect"
	TypePing    MessageType = "ping"
	TypePong    MessageType = "pong"
	TypeError   MessageType = "error"

	// Типы комнат
	TypeRoomJoin    MessageType = "room_join"
	TypeRoomLeave   MessageType = "room_leave"
	TypeRoomUsers   MessageType = "room_users"
	TypeRoomDeleted MessageType = "room_deleted"

	// Очередь заявок
	TypeJoinRequest  MessageType = "join_request_created"
	TypeJoinResolved MessageType = "join_request_resolved"
	TypeAdminChanged MessageType = "admin_changed"

	// Команды администратора
	TypeJoinApprove MessageType = "join_approve"
	TypeJoinReject  MessageType = "join_reject"
)

type Message struct {
	Type      MessageType     `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type Client struct {
	ID     uuid.UUID
	UserID string
	Name   string
	Conn   *websocket.Conn
	Send   chan []byte
	Rooms  map[string]bool
	Hub    *Hub
	mu     sync.RWMutex
}

// RoomAccess решает, можно ли клиенту войти в живую сессию комнаты,
// и узнаёт о входе и выходе участников.
type RoomAccess interface {
	CanJoin(ctx context.Context, roomID, userID string) (bool, error)
	Entered(ctx context.Context, roomID string, p models.Participant)
	Left(ctx context.Context, roomID, userID string)
}

type Hub struct {
	clients map[uuid.UUID]*Client

	// Клиенты по UserID (один пользователь может иметь несколько соединений)
	userClients map[string]map[uuid.UUID]*Client

	// Клиенты в комнатах
	rooms map[string]map[uuid.UUID]*Client

	// Каналы для регистрации/отмены регистрации
	register   chan *Client
	unregister chan *Client

	access RoomAccess

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub. access может быть nil, тогда в комнату пускают всех.
func NewHub(access RoomAccess) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[string]map[uuid.UUID]*Client),
		rooms:       make(map[string]map[uuid.UUID]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		access:      access,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run запускает hub до отмены ctx или вызова Stop.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return nil

		case <-h.ctx.Done():
			return nil

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub. Каналы Send закрывает только unregisterClient,
// здесь закрываются соединения, а ReadPump завершает клиента сам.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client
	h.mu.Unlock()

	log.Debug().Str("module", "ws.hub").Str("client", client.ID.String()).Str("user", client.UserID).Msg("client registered")
	client.SendMessage(TypeConnect, map[string]string{"user_id": client.UserID})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}

	// Удаляем из всех комнат
	var left []string
	for _, roomID := range client.GetRooms() {
		if h.removeFromRoomUnsafe(client, roomID) {
			left = append(left, roomID)
		}
	}

	// Удаляем из списка клиентов пользователя
	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)
	h.mu.Unlock()

	for _, roomID := range left {
		h.left(roomID, client.UserID)
	}
	log.Debug().Str("module", "ws.hub").Str("client", client.ID.String()).Str("user", client.UserID).Msg("client unregistered")
}

// JoinRoom добавляет клиента в комнату, если он допущен в неё.
func (h *Hub) JoinRoom(ctx context.Context, client *Client, roomID string) error {
	if h.access != nil {
		ok, err := h.access.CanJoin(ctx, roomID, client.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAdmitted
		}
	}

	h.mu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}
	h.rooms[roomID][client.ID] = client
	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()

	// Уведомляем других участников о присоединении
	joinMsg := Message{
		Type:      TypeRoomJoin,
		RoomID:    roomID,
		UserID:    client.UserID,
		Timestamp: time.Now(),
	}
	if data, err := json.Marshal(joinMsg); err == nil {
		h.broadcastToRoomExcept(roomID, data, client.ID)
	}

	// Отправляем список участников новому клиенту
	h.sendRoomUsers(client, roomID)
	h.mu.Unlock()

	if h.access != nil {
		h.access.Entered(ctx, roomID, models.Participant{UID: client.UserID, Name: client.Name, JoinedAt: time.Now()})
	}
	return nil
}

// LeaveRoom удаляет клиента из комнаты
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	gone := h.removeFromRoomUnsafe(client, roomID)
	h.mu.Unlock()

	if gone {
		h.left(roomID, client.UserID)
	}
}

func (h *Hub) left(roomID, userID string) {
	if h.access != nil {
		h.access.Left(h.ctx, roomID, userID)
	}
}

// removeFromRoomUnsafe возвращает true, если у пользователя не осталось
// других соединений в этой комнате.
func (h *Hub) removeFromRoomUnsafe(client *Client, roomID string) bool {
	room, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := room[client.ID]; !ok {
		return false
	}

	delete(room, client.ID)
	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()

	for _, c := range room {
		if c.UserID == client.UserID {
			return false
		}
	}

	if len(room) == 0 {
		delete(h.rooms, roomID)
	} else {
		// Уведомляем других участников
		leaveMsg := Message{
			Type:      TypeRoomLeave,
			RoomID:    roomID,
			UserID:    client.UserID,
			Timestamp: time.Now(),
		}
		if data, err := json.Marshal(leaveMsg); err == nil {
			h.broadcastToRoomExcept(roomID, data, client.ID)
		}
	}
	return true
}

// closeRoom убирает всех клиентов из удалённой комнаты
func (h *Hub) closeRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.rooms[roomID] {
		client.mu.Lock()
		delete(client.Rooms, roomID)
		client.mu.Unlock()
	}
	delete(h.rooms, roomID)
}

// SendToUser отправляет сообщение пользователю
func (h *Hub) SendToUser(userID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.userClients[userID] {
		select {
		case client.Send <- message:
		default:
			log.Warn().Str("module", "ws.hub").Str("client", client.ID.String()).Msg("send channel full")
		}
	}
}

// SendToRoom отправляет сообщение в комнату
func (h *Hub) SendToRoom(roomID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.broadcastToRoomExcept(roomID, message, uuid.Nil)
}

func (h *Hub) broadcastToRoomExcept(roomID string, message []byte, excludeID uuid.UUID) {
	for _, client := range h.rooms[roomID] {
		if client.ID == excludeID {
			continue
		}
		select {
		case client.Send <- message:
		default:
			log.Warn().Str("module", "ws.hub").Str("client", client.ID.String()).Msg("send channel full")
		}
	}
}

func (h *Hub) sendRoomUsers(client *Client, roomID string) {
	users := h.roomParticipantsUnsafe(roomID)

	msg := Message{
		Type:      TypeRoomUsers,
		RoomID:    roomID,
		UserID:    client.UserID,
		Timestamp: time.Now(),
	}

	if data, err := json.Marshal(users); err == nil {
		msg.Data = data
		if msgData, err := json.Marshal(msg); err == nil {
			select {
			case client.Send <- msgData:
			default:
				log.Warn().Str("module", "ws.hub").Str("client", client.ID.String()).Msg("failed to send room users")
			}
		}
	}
}

func (h *Hub) roomParticipantsUnsafe(roomID string) []models.Participant {
	seen := make(map[string]bool)
	users := make([]models.Participant, 0)
	for _, c := range h.rooms[roomID] {
		if seen[c.UserID] {
			continue
		}
		seen[c.UserID] = true
		users = append(users, models.Participant{UID: c.UserID, Name: c.Name})
	}
	return users
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := Message{
		Type:      TypePing,
		Timestamp: time.Now(),
	}

	if data, err := json.Marshal(msg); err == nil {
		for _, client := range h.clients {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}

// Forward пересылает события шины подключённым клиентам: топики
// пользователей в их соединения, топики комнат участникам комнаты.
func (h *Hub) Forward(ctx context.Context, sub events.Subscription) error {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-sub.C():
			if !ok {
				return nil
			}
			h.deliver(d)
		}
	}
}

func (h *Hub) deliver(d events.Delivery) {
	kind, id, ok := events.ParseTopic(d.Topic)
	if !ok {
		return
	}

	msg := Message{RoomID: d.Event.RoomID, Timestamp: d.Event.At}
	var payload interface{}
	switch d.Event.Type {
	case events.JoinRequestCreated:
		msg.Type = TypeJoinRequest
		payload = d.Event.Request
	case events.JoinRequestResolved:
		msg.Type = TypeJoinResolved
		payload = d.Event.Request
	case events.AdminChanged:
		msg.Type = TypeAdminChanged
		payload = map[string]string{"creator_id": d.Event.CreatorID}
	case events.RoomDeleted:
		msg.Type = TypeRoomDeleted
	default:
		return
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Str("module", "ws.hub").Err(err).Msg("encode event payload")
			return
		}
		msg.Data = data
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Str("module", "ws.hub").Err(err).Msg("encode event")
		return
	}

	switch kind {
	case "user":
		h.SendToUser(id, data)
	case "room":
		h.SendToRoom(id, data)
		if d.Event.Type == events.RoomDeleted {
			h.closeRoom(id)
		}
	}
}
