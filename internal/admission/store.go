// Package admission решает, кто и когда попадает в комнату: реестр комнат,
// очередь заявок, контроллер входа, передача прав администратора
// и сессия ожидания гостя.
package admission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/roomgate/internal/models"
)

// RoomStore хранит реестр комнат.
type RoomStore interface {
	// InsertRoom добавляет комнату, если кода ещё нет. false означает коллизию.
	InsertRoom(ctx context.Context, room *models.Room) (bool, error)
	// GetRoom возвращает apperr.ErrRoomNotFound для неизвестного кода.
	GetRoom(ctx context.Context, code string) (*models.Room, error)
	UpsertCreator(ctx context.Context, code, userID string) error
	// SwapCreator меняет создателя, только если текущий равен from.
	// Прежний создатель остаётся допущенным в комнату.
	SwapCreator(ctx context.Context, code, from, to string) (bool, error)
	// IsMember сообщает, был ли пользователь допущен в комнату.
	IsMember(ctx context.Context, code, userID string) (bool, error)
	// DeleteRoom удаляет комнату вместе с её заявками и допусками.
	DeleteRoom(ctx context.Context, code string) error
}

// RequestStore хранит заявки на вход.
type RequestStore interface {
	// CreatePending сохраняет заявку. Если у пользователя уже есть pending-заявка
	// в этой комнате, возвращается она и false.
	CreatePending(ctx context.Context, req *models.JoinRequest) (*models.JoinRequest, bool, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error)
	// ResolveRequest атомарно переводит pending-заявку в финальный статус.
	// Одобрение в той же операции записывает допуск пользователя в комнату.
	// Для уже решённой заявки возвращает apperr.ErrAlreadyResolved.
	ResolveRequest(ctx context.Context, id uuid.UUID, status models.JoinRequestStatus, reason, by string, at time.Time) (*models.JoinRequest, error)
	// ListPending возвращает pending-заявки комнаты в порядке создания.
	ListPending(ctx context.Context, code string) ([]models.JoinRequest, error)
	ListPendingBefore(ctx context.Context, before time.Time) ([]models.JoinRequest, error)
	DeleteRequest(ctx context.Context, id uuid.UUID) error
}
