package models

import (
	"time"

	"github.com/google/uuid"
)

// User профиль зарегистрированного пользователя.
// Гости в таблицу не попадают, их личность живёт только в JWT.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null;size:50"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	DisplayName  string    `gorm:"size:64"`
	AvatarURL    string
	LastSeenAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Name возвращает имя, которое видят остальные участники встречи.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
