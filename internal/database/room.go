package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

// InsertRoom вставляет комнату, при конфликте кода ничего не делает.
func (d *Database) InsertRoom(ctx context.Context, room *models.Room) (bool, error) {
	res := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(room)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *Database) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "code = ?", code).Error; err != nil {
		return nil, translate(err, apperr.ErrRoomNotFound)
	}
	return &room, nil
}

func (d *Database) UpsertCreator(ctx context.Context, code, userID string) error {
	now := time.Now()
	room := models.Room{Code: code, CreatorID: userID, CreatedAt: now, UpdatedAt: now}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"creator_id", "updated_at"}),
	}).Create(&room).Error
}

// SwapCreator меняет создателя одним условным UPDATE и в той же
// транзакции оставляет прежнего создателя допущенным.
func (d *Database) SwapCreator(ctx context.Context, code, from, to string) (bool, error) {
	swapped := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Room{}).
			Where("code = ? AND creator_id = ?", code, from).
			Updates(map[string]interface{}{"creator_id": to, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var room models.Room
			return translate(tx.First(&room, "code = ?", code).Error, apperr.ErrRoomNotFound)
		}
		swapped = true
		return addMember(tx, code, from, to, now)
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (d *Database) DeleteRoom(ctx context.Context, code string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.JoinRequest{}, "room_code = ?", code).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.RoomMember{}, "room_code = ?", code).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.Room{}, "code = ?", code)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrRoomNotFound
		}
		return nil
	})
}
