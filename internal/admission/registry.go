package admission

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/events"
	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

const (
	DefaultCodeLength      = 8
	DefaultMaxCodeAttempts = 20

	codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// CodeGenerator выдаёт кандидата в коды комнат.
type CodeGenerator func() (string, error)

// RandomCode генерирует коды из строчных латинских букв и цифр.
func RandomCode(length int) CodeGenerator {
	alphabetSize := big.NewInt(int64(len(codeAlphabet)))
	return func() (string, error) {
		var b strings.Builder
		b.Grow(length)
		for i := 0; i < length; i++ {
			n, err := rand.Int(rand.Reader, alphabetSize)
			if err != nil {
				return "", err
			}
			b.WriteByte(codeAlphabet[n.Int64()])
		}
		return b.String(), nil
	}
}

type RegistryOptions struct {
	Generate    CodeGenerator
	MaxAttempts int
	Publisher   events.Publisher
	Now         func() time.Time
}

// Registry сопоставляет коды комнат их создателям.
type Registry struct {
	rooms       RoomStore
	generate    CodeGenerator
	maxAttempts int
	pub         events.Publisher
	now         func() time.Time
}

func NewRegistry(rooms RoomStore, opts RegistryOptions) *Registry {
	r := &Registry{
		rooms:       rooms,
		generate:    opts.Generate,
		maxAttempts: opts.MaxAttempts,
		pub:         opts.Publisher,
		now:         opts.Now,
	}
	if r.generate == nil {
		r.generate = RandomCode(DefaultCodeLength)
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxCodeAttempts
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// GenerateUniqueRoomID возвращает код, которого ещё нет в реестре.
// Код не резервируется, занять его атомарно умеет только CreateRoom.
func (r *Registry) GenerateUniqueRoomID(ctx context.Context) (string, error) {
	return r.claimCode(func(code string) (bool, error) {
		exists, err := r.Exists(ctx, code)
		return !exists, err
	})
}

// CreateRoom заводит комнату с новым кодом и делает userID её создателем.
func (r *Registry) CreateRoom(ctx context.Context, userID string) (*models.Room, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty user id", apperr.ErrInvalidInput)
	}

	var room *models.Room
	code, err := r.claimCode(func(code string) (bool, error) {
		now := r.now()
		room = &models.Room{Code: code, CreatorID: userID, CreatedAt: now, UpdatedAt: now}
		return r.rooms.InsertRoom(ctx, room)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("module", "admission.registry").Str("room", code).Str("creator", userID).Msg("room created")
	return room, nil
}

// claimCode генерирует коды, пока claim не примет один из них,
// но не больше maxAttempts раз.
func (r *Registry) claimCode(claim func(code string) (bool, error)) (string, error) {
	for i := 0; i < r.maxAttempts; i++ {
		code, err := r.generate()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		ok, err := claim(code)
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
		log.Debug().Str("module", "admission.registry").Str("code", code).Int("attempt", i+1).Msg("room code collision")
	}
	return "", apperr.ErrRegistryExhausted
}

// RegisterCreator перезаписывает создателя комнаты. Повторный вызов
// с теми же аргументами ничего не меняет.
func (r *Registry) RegisterCreator(ctx context.Context, roomID, userID string) error {
	if roomID == "" || userID == "" {
		return apperr.ErrInvalidInput
	}
	return r.rooms.UpsertCreator(ctx, roomID, userID)
}

func (r *Registry) IsCreator(ctx context.Context, roomID, userID string) (bool, error) {
	creator, err := r.Creator(ctx, roomID)
	if errors.Is(err, apperr.ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return creator == userID, nil
}

// IsMember сообщает, был ли пользователь допущен в комнату одобренной
// заявкой или передачей прав.
func (r *Registry) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return r.rooms.IsMember(ctx, roomID, userID)
}

func (r *Registry) Creator(ctx context.Context, roomID string) (string, error) {
	room, err := r.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return "", err
	}
	return room.CreatorID, nil
}

func (r *Registry) Room(ctx context.Context, roomID string) (*models.Room, error) {
	return r.rooms.GetRoom(ctx, roomID)
}

func (r *Registry) Exists(ctx context.Context, roomID string) (bool, error) {
	_, err := r.rooms.GetRoom(ctx, roomID)
	if errors.Is(err, apperr.ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TransferCreator передаёт права администратора. Только текущий создатель
// может отдать их другому пользователю.
func (r *Registry) TransferCreator(ctx context.Context, roomID, from, to string) error {
	if to == "" {
		return fmt.Errorf("%w: empty successor", apperr.ErrInvalidInput)
	}
	if from == to {
		ok, err := r.IsCreator(ctx, roomID, from)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrForbidden
		}
		return nil
	}

	swapped, err := r.rooms.SwapCreator(ctx, roomID, from, to)
	if err != nil {
		return err
	}
	if !swapped {
		if _, err := r.rooms.GetRoom(ctx, roomID); err != nil {
			return err
		}
		return apperr.ErrForbidden
	}

	log.Info().Str("module", "admission.registry").Str("room", roomID).Str("from", from).Str("to", to).Msg("admin transferred")
	r.publish(ctx, events.Event{Type: events.AdminChanged, RoomID: roomID, UserID: from, CreatorID: to, At: r.now()},
		events.RoomTopic(roomID), events.UserTopic(to))
	return nil
}

// DeleteRoom удаляет комнату. Разрешено только создателю.
func (r *Registry) DeleteRoom(ctx context.Context, roomID, by string) error {
	ok, err := r.IsCreator(ctx, roomID, by)
	if err != nil {
		return err
	}
	if !ok {
		if exists, err := r.Exists(ctx, roomID); err == nil && !exists {
			return apperr.ErrRoomNotFound
		}
		return apperr.ErrForbidden
	}
	if err := r.rooms.DeleteRoom(ctx, roomID); err != nil {
		return err
	}

	log.Info().Str("module", "admission.registry").Str("room", roomID).Str("by", by).Msg("room deleted")
	r.publish(ctx, events.Event{Type: events.RoomDeleted, RoomID: roomID, UserID: by, At: r.now()}, events.RoomTopic(roomID))
	return nil
}

func (r *Registry) publish(ctx context.Context, ev events.Event, topics ...string) {
	if r.pub == nil {
		return
	}
	if err := r.pub.Publish(ctx, ev, topics...); err != nil {
		log.Error().Str("module", "admission.registry").Err(err).Str("room", ev.RoomID).Msg("publish failed")
	}
}
