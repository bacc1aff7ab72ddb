package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thereayou/roomgate/internal/models"
)

func (d *Database) IsMember(ctx context.Context, code, userID string) (bool, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_code = ? AND user_id = ?", code, userID).
		Count(&n).Error
	return n > 0, err
}

// addMember не трогает уже существующий допуск.
func addMember(tx *gorm.DB, code, userID, by string, at time.Time) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.RoomMember{
		RoomCode:   code,
		UserID:     userID,
		AdmittedBy: by,
		AdmittedAt: at,
	}).Error
}
