package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/events"
	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

// CreatorLookup нужен очереди, чтобы адресовать новую заявку администратору.
type CreatorLookup interface {
	Creator(ctx context.Context, roomID string) (string, error)
}

// Queue очередь заявок на вход, по одной очереди на комнату.
type Queue struct {
	store    RequestStore
	creators CreatorLookup
	pub      events.Publisher
	now      func() time.Time
}

func NewQueue(store RequestStore, creators CreatorLookup, pub events.Publisher) *Queue {
	return &Queue{store: store, creators: creators, pub: pub, now: time.Now}
}

// Enqueue создаёт pending-заявку. Повторная попытка того же пользователя
// возвращает уже существующую заявку (created == false).
func (q *Queue) Enqueue(ctx context.Context, roomID, userID, userName string) (*models.JoinRequest, bool, error) {
	userName = strings.TrimSpace(userName)
	if roomID == "" || userID == "" || userName == "" {
		return nil, false, apperr.ErrInvalidInput
	}

	req := &models.JoinRequest{
		ID:        uuid.New(),
		RoomCode:  roomID,
		UserID:    userID,
		UserName:  userName,
		Status:    models.JoinRequestPending,
		CreatedAt: q.now(),
	}
	stored, created, err := q.store.CreatePending(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue join request: %w", err)
	}
	if !created {
		return stored, false, nil
	}

	log.Info().Str("module", "admission.queue").Str("room", roomID).Str("user", userID).Str("request", stored.ID.String()).Msg("join request queued")

	// Новая заявка видна только администратору комнаты
	topic := events.RoomTopic(roomID)
	if q.creators != nil {
		if creator, err := q.creators.Creator(ctx, roomID); err == nil && creator != "" {
			topic = events.UserTopic(creator)
		}
	}
	q.publish(ctx, events.Event{Type: events.JoinRequestCreated, RoomID: roomID, UserID: userID, Request: stored, At: stored.CreatedAt}, topic)
	return stored, true, nil
}

// Resolve переводит заявку в approved или rejected. Заявку можно решить
// только один раз, повторный вызов вернёт apperr.ErrAlreadyResolved.
func (q *Queue) Resolve(ctx context.Context, id uuid.UUID, status models.JoinRequestStatus, by string) (*models.JoinRequest, error) {
	var reason string
	switch status {
	case models.JoinRequestApproved:
		reason = models.ReasonApproved
	case models.JoinRequestRejected:
		reason = models.ReasonDeclined
	default:
		return nil, fmt.Errorf("%w: status %q", apperr.ErrInvalidInput, status)
	}
	return q.resolve(ctx, id, status, reason, by)
}

func (q *Queue) resolve(ctx context.Context, id uuid.UUID, status models.JoinRequestStatus, reason, by string) (*models.JoinRequest, error) {
	req, err := q.store.ResolveRequest(ctx, id, status, reason, by, q.now())
	if err != nil {
		return nil, err
	}

	log.Info().Str("module", "admission.queue").Str("room", req.RoomCode).Str("request", id.String()).Str("status", string(status)).Str("reason", reason).Msg("join request resolved")
	q.publish(ctx, events.Event{Type: events.JoinRequestResolved, RoomID: req.RoomCode, UserID: req.UserID, Request: req, At: q.now()},
		events.RoomTopic(req.RoomCode), events.UserTopic(req.UserID))
	return req, nil
}

func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	return q.store.GetRequest(ctx, id)
}

// ListPending используется администратором после переподключения.
func (q *Queue) ListPending(ctx context.Context, roomID string) ([]models.JoinRequest, error) {
	return q.store.ListPending(ctx, roomID)
}

// Head возвращает самую раннюю pending-заявку или nil, если очередь пуста.
// Администратору показывается по одной заявке за раз.
func (q *Queue) Head(ctx context.Context, roomID string) (*models.JoinRequest, error) {
	pending, err := q.store.ListPending(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	return &pending[0], nil
}

// Cancel отзывает заявку по инициативе самого гостя.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID, userID string) (*models.JoinRequest, error) {
	req, err := q.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, apperr.ErrAlreadyResolved
	}
	return q.resolve(ctx, id, models.JoinRequestRejected, models.ReasonCancelled, userID)
}

// Acknowledge удаляет решённую заявку, когда гость увидел результат.
func (q *Queue) Acknowledge(ctx context.Context, id uuid.UUID, userID string) error {
	req, err := q.owned(ctx, id, userID)
	if err != nil {
		return err
	}
	if req.IsPending() {
		return apperr.ErrRequestPending
	}
	return q.store.DeleteRequest(ctx, id)
}

// Expire отклоняет заявку по таймауту ожидания.
func (q *Queue) Expire(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	return q.resolve(ctx, id, models.JoinRequestRejected, models.ReasonTimedOut, "")
}

// ExpirePending отклоняет все заявки, ждущие дольше timeout.
func (q *Queue) ExpirePending(ctx context.Context, timeout time.Duration) (int, error) {
	stale, err := q.store.ListPendingBefore(ctx, q.now().Add(-timeout))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, req := range stale {
		_, err := q.Expire(ctx, req.ID)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, apperr.ErrAlreadyResolved), errors.Is(err, apperr.ErrRequestNotFound):
		default:
			return expired, err
		}
	}
	return expired, nil
}

// RunExpiry периодически вызывает ExpirePending, пока жив ctx.
func (q *Queue) RunExpiry(ctx context.Context, interval, timeout time.Duration) error {
	if interval <= 0 || timeout <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := q.ExpirePending(ctx, timeout)
			if err != nil {
				log.Error().Str("module", "admission.queue").Err(err).Msg("expire pending requests")
				continue
			}
			if n > 0 {
				log.Info().Str("module", "admission.queue").Int("expired", n).Msg("expired pending requests")
			}
		}
	}
}

func (q *Queue) owned(ctx context.Context, id uuid.UUID, userID string) (*models.JoinRequest, error) {
	req, err := q.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	return req, nil
}

func (q *Queue) publish(ctx context.Context, ev events.Event, topics ...string) {
	if q.pub == nil {
		return
	}
	if err := q.pub.Publish(ctx, ev, topics...); err != nil {
		log.Error().Str("module", "admission.queue").Err(err).Str("room", ev.RoomID).Str("type", string(ev.Type)).Msg("publish failed")
	}
}
