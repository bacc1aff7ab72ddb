package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

// CreatePending опирается на частичный уникальный индекс idx_join_requests_pending:
// при гонке двух вставок вторая получает существующую заявку.
func (d *Database) CreatePending(ctx context.Context, req *models.JoinRequest) (*models.JoinRequest, bool, error) {
	db := d.db.WithContext(ctx)

	existing, err := d.pendingFor(ctx, req.RoomCode, req.UserID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	created := *req
	created.Status = models.JoinRequestPending
	err = db.Create(&created).Error
	switch {
	case err == nil:
		return &created, true, nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		existing, err := d.pendingFor(ctx, req.RoomCode, req.UserID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return nil, false, apperr.ErrRoomNotFound
	}
	return nil, false, err
}

func (d *Database) pendingFor(ctx context.Context, code, userID string) (*models.JoinRequest, error) {
	var req models.JoinRequest
	err := d.db.WithContext(ctx).
		Where("room_code = ? AND user_id = ? AND status = ?", code, userID, models.JoinRequestPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (d *Database) GetRequest(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	var req models.JoinRequest
	if err := d.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err, apperr.ErrRequestNotFound)
	}
	return &req, nil
}

// ResolveRequest обновляет только pending-строку, поэтому из двух
// одновременных решений побеждает одно. Допуск пишется в той же транзакции.
func (d *Database) ResolveRequest(ctx context.Context, id uuid.UUID, status models.JoinRequestStatus, reason, by string, at time.Time) (*models.JoinRequest, error) {
	var req models.JoinRequest
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.JoinRequest{}).
			Where("id = ? AND status = ?", id, models.JoinRequestPending).
			Updates(map[string]interface{}{
				"status":      status,
				"reason":      reason,
				"resolved_by": by,
				"resolved_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			return translate(err, apperr.ErrRequestNotFound)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrAlreadyResolved
		}
		if status == models.JoinRequestApproved {
			return addMember(tx, req.RoomCode, req.UserID, by, at)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (d *Database) ListPending(ctx context.Context, code string) ([]models.JoinRequest, error) {
	var reqs []models.JoinRequest
	err := d.db.WithContext(ctx).
		Where("room_code = ? AND status = ?", code, models.JoinRequestPending).
		Order("created_at ASC").
		Find(&reqs).Error
	return reqs, err
}

func (d *Database) ListPendingBefore(ctx context.Context, before time.Time) ([]models.JoinRequest, error) {
	var reqs []models.JoinRequest
	err := d.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.JoinRequestPending, before).
		Order("created_at ASC").
		Find(&reqs).Error
	return reqs, err
}

func (d *Database) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	res := d.db.WithContext(ctx).Delete(&models.JoinRequest{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrRequestNotFound
	}
	return nil
}
