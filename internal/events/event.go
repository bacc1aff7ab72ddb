// Package events доставляет изменения очереди и реестра подписчикам:
// WebSocket-хабу, long-poll запросам и сессиям ожидания.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/thereayou/roomgate/internal/models"
)

type Type string

const (
	JoinRequestCreated  Type = "join_request.created"
	JoinRequestResolved Type = "join_request.resolved"
	AdminChanged        Type = "room.admin_changed"
	RoomDeleted         Type = "room.deleted"
)

type Event struct {
	Type      Type                `json:"type"`
	RoomID    string              `json:"room_id"`
	UserID    string              `json:"user_id,omitempty"`
	Request   *models.JoinRequest `json:"request,omitempty"`
	CreatorID string              `json:"creator_id,omitempty"`
	At        time.Time           `json:"at"`
}

// Delivery событие вместе с топиком, через который оно пришло.
type Delivery struct {
	Topic string
	Event Event
}

const (
	roomPrefix = "room:"
	userPrefix = "user:"

	// AllTopics подписывает на все топики сразу
	AllTopics = "*"
)

func RoomTopic(roomID string) string { return roomPrefix + roomID }

func UserTopic(userID string) string { return userPrefix + userID }

// ParseTopic разбирает топик на вид ("room" или "user") и идентификатор.
func ParseTopic(topic string) (kind, id string, ok bool) {
	switch {
	case strings.HasPrefix(topic, roomPrefix):
		return "room", strings.TrimPrefix(topic, roomPrefix), true
	case strings.HasPrefix(topic, userPrefix):
		return "user", strings.TrimPrefix(topic, userPrefix), true
	}
	return "", "", false
}

type Publisher interface {
	Publish(ctx context.Context, ev Event, topics ...string) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
}

type Bus interface {
	Publisher
	Subscriber
}

type Subscription interface {
	C() <-chan Delivery
	Close() error
}
