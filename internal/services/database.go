package services

import (
	"context"

	"github.com/thereayou/roomgate/internal/models"
)

// UserStore хранилище зарегистрированных пользователей.
// Реализуется database.Database и memstore.Store.
type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	SearchUsersByUsername(ctx context.Context, query string, limit int) ([]models.User, error)
	UpdateLastSeen(ctx context.Context, id string) error
}
