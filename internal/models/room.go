package models

import "time"

// Room запись реестра комнат. Code является первичным ключом,
// поэтому у комнаты не может быть двух создателей одновременно.
type Room struct {
	Code      string `gorm:"primaryKey;size:16"`
	CreatorID string `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
