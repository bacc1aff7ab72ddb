package models

import "time"

// RoomMember запись о допуске пользователя в комнату. Появляется при
// одобрении заявки или при передаче прав администратора и живёт вместе
// с комнатой, независимо от судьбы заявки.
type RoomMember struct {
	RoomCode   string `gorm:"primaryKey;size:16"`
	UserID     string `gorm:"primaryKey"`
	AdmittedBy string
	AdmittedAt time.Time

	Room *Room `gorm:"foreignKey:RoomCode;references:Code;constraint:OnDelete:CASCADE"`
}
