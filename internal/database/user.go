package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	return translate(d.db.WithContext(ctx).Create(user).Error, apperr.ErrUserNotFound)
}

func (d *Database) UpdateUser(ctx context.Context, user *models.User) error {
	return translate(d.db.WithContext(ctx).Save(user).Error, apperr.ErrUserNotFound)
}

func (d *Database) GetUser(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.ErrUserNotFound
	}
	user := models.User{}
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, apperr.ErrUserNotFound)
	}
	return &user, nil
}

func (d *Database) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, translate(err, apperr.ErrUserNotFound)
	}
	return &user, nil
}

func (d *Database) SearchUsersByUsername(ctx context.Context, query string, limit int) ([]models.User, error) {
	var users []models.User
	q := d.db.WithContext(ctx).Where("username ILIKE ?", "%"+query+"%").Order("username")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (d *Database) UpdateLastSeen(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", time.Now()).Error
}
