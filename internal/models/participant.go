package models

import "time"

// Participant живое присутствие в комнате, в БД не хранится.
type Participant struct {
	UID      string    `json:"uid"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// Credentials то, что клиент передаёт медиа-SDK для подключения к комнате.
// Token равен nil в открытом (demo) режиме.
type Credentials struct {
	AppID     string     `json:"app_id"`
	URL       string     `json:"url,omitempty"`
	RoomID    string     `json:"room_id"`
	Token     *string    `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
