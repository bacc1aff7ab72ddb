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

const (
	DefaultWaitTimeout  = 10 * time.Minute
	DefaultPollInterval = 2 * time.Second
)

type Outcome string

const (
	OutcomeAdmitted Outcome = "admitted"
	OutcomeQueued   Outcome = "queued"
)

type JoinInput struct {
	RoomID string
	UserID string
	Name   string
}

type JoinResult struct {
	Outcome     Outcome
	Credentials *models.Credentials
	Request     *models.JoinRequest
}

type ControllerOptions struct {
	// WaitTimeout сколько гость может ждать решения, считая от создания заявки.
	WaitTimeout  time.Duration
	PollInterval time.Duration
	// GracePeriod пауза между одобрением и выдачей учётных данных ожидающему гостю.
	GracePeriod  time.Duration
	Subscriber   events.Subscriber
}

// Controller решает исход попытки входа: создатель проходит сразу,
// остальные попадают в очередь и ждут решения администратора.
type Controller struct {
	registry *Registry
	queue    *Queue
	issuer   CredentialIssuer
	sub      events.Subscriber
	wait     time.Duration
	poll     time.Duration
	grace    time.Duration
	now      func() time.Time
}

func NewController(registry *Registry, queue *Queue, issuer CredentialIssuer, opts ControllerOptions) *Controller {
	c := &Controller{
		registry: registry,
		queue:    queue,
		issuer:   issuer,
		sub:      opts.Subscriber,
		wait:     opts.WaitTimeout,
		poll:     opts.PollInterval,
		grace:    opts.GracePeriod,
		now:      time.Now,
	}
	if c.wait <= 0 {
		c.wait = DefaultWaitTimeout
	}
	if c.poll <= 0 {
		c.poll = DefaultPollInterval
	}
	return c
}

// NormalizeRoomID приводит введённый пользователем код к виду из реестра.
func NormalizeRoomID(roomID string) string {
	return strings.ToLower(strings.TrimSpace(roomID))
}

func (c *Controller) Join(ctx context.Context, in JoinInput) (*JoinResult, error) {
	name := strings.TrimSpace(in.Name)
	roomID := NormalizeRoomID(in.RoomID)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	}
	if roomID == "" {
		return nil, fmt.Errorf("%w: room code is required", apperr.ErrInvalidInput)
	}
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", apperr.ErrInvalidInput)
	}

	room, err := c.registry.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.CreatorID == in.UserID {
		creds, err := c.issuer.Issue(roomID, in.UserID, name)
		if err != nil {
			return nil, err
		}
		log.Info().Str("module", "admission.controller").Str("room", roomID).Str("user", in.UserID).Msg("creator admitted")
		return &JoinResult{Outcome: OutcomeAdmitted, Credentials: creds}, nil
	}

	// Уже допущенный пользователь входит повторно без заявки
	member, err := c.registry.IsMember(ctx, roomID, in.UserID)
	if err != nil {
		return nil, err
	}
	if member {
		creds, err := c.issuer.Issue(roomID, in.UserID, name)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("module", "admission.controller").Str("room", roomID).Str("user", in.UserID).Msg("member readmitted")
		return &JoinResult{Outcome: OutcomeAdmitted, Credentials: creds}, nil
	}

	req, _, err := c.queue.Enqueue(ctx, roomID, in.UserID, name)
	if err != nil {
		return nil, err
	}
	return &JoinResult{Outcome: OutcomeQueued, Request: req}, nil
}

// IsAdmitted сообщает, может ли пользователь подключиться к живой сессии комнаты.
func (c *Controller) IsAdmitted(ctx context.Context, roomID, userID string) (bool, error) {
	ok, err := c.registry.IsCreator(ctx, roomID, userID)
	if err != nil || ok {
		return ok, err
	}
	return c.registry.IsMember(ctx, roomID, userID)
}

// Resolve выполняет решение администратора по заявке.
func (c *Controller) Resolve(ctx context.Context, roomID string, requestID uuid.UUID, adminID string, approve bool) (*models.JoinRequest, error) {
	roomID = NormalizeRoomID(roomID)
	req, err := c.roomRequest(ctx, roomID, requestID)
	if err != nil {
		return nil, err
	}

	ok, err := c.registry.IsCreator(ctx, roomID, adminID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrForbidden
	}

	status := models.JoinRequestRejected
	if approve {
		status = models.JoinRequestApproved
	}
	resolved, err := c.queue.Resolve(ctx, req.ID, status, adminID)
	if errors.Is(err, apperr.ErrAlreadyResolved) {
		log.Debug().Str("module", "admission.controller").Str("room", roomID).Str("request", requestID.String()).Msg("request already resolved")
	}
	return resolved, err
}

// Credentials выдаёт данные для медиа-сессии по одобренной заявке.
func (c *Controller) Credentials(ctx context.Context, roomID string, requestID uuid.UUID, userID string) (*models.Credentials, error) {
	roomID = NormalizeRoomID(roomID)
	req, err := c.roomRequest(ctx, roomID, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	if err := StatusError(req); err != nil {
		return nil, err
	}
	return c.issuer.Issue(roomID, userID, req.UserName)
}

// Cancel отзывает заявку, если гость перестал ждать.
func (c *Controller) Cancel(ctx context.Context, roomID string, requestID uuid.UUID, userID string) (*models.JoinRequest, error) {
	if _, err := c.roomRequest(ctx, NormalizeRoomID(roomID), requestID); err != nil {
		return nil, err
	}
	return c.queue.Cancel(ctx, requestID, userID)
}

// Acknowledge удаляет решённую заявку после того, как гость увидел итог.
func (c *Controller) Acknowledge(ctx context.Context, roomID string, requestID uuid.UUID, userID string) error {
	if _, err := c.roomRequest(ctx, NormalizeRoomID(roomID), requestID); err != nil {
		return err
	}
	return c.queue.Acknowledge(ctx, requestID, userID)
}

// Await блокируется до решения по заявке. Для одобренной заявки после
// GracePeriod возвращаются учётные данные. Если гость ждёт дольше
// WaitTimeout, заявка отклоняется и возвращается apperr.ErrRequestTimedOut.
// Ошибка ctx вызывающего возвращается как есть, вместе с текущей заявкой.
func (c *Controller) Await(ctx context.Context, roomID string, requestID uuid.UUID, userID string) (*models.JoinRequest, *models.Credentials, error) {
	var creds *models.Credentials
	req, err := c.await(ctx, roomID, requestID, userID, func(_ *models.JoinRequest, issued *models.Credentials) {
		creds = issued
	})
	if err != nil || StateOf(req) != SessionApproved {
		return req, nil, err
	}
	if creds == nil {
		if creds, err = c.issuer.Issue(req.RoomCode, req.UserID, req.UserName); err != nil {
			return req, nil, err
		}
	}
	return req, creds, nil
}

func (c *Controller) await(ctx context.Context, roomID string, requestID uuid.UUID, userID string, onAdmitted func(*models.JoinRequest, *models.Credentials)) (*models.JoinRequest, error) {
	roomID = NormalizeRoomID(roomID)
	req, err := c.roomRequest(ctx, roomID, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	if !req.IsPending() {
		return req, nil
	}

	deadline := req.CreatedAt.Add(c.wait)
	if !c.now().Before(deadline) {
		return c.expire(ctx, req)
	}

	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	session := NewSession(c.queue, c.sub, requestID, userID, SessionOptions{
		PollInterval: c.poll,
		GracePeriod:  c.grace,
		Issuer:       c.issuer,
		OnAdmitted:   onAdmitted,
		OnDeclined: func(req *models.JoinRequest) {
			log.Debug().Str("module", "admission.controller").Str("request", req.ID.String()).Str("reason", req.Reason).Msg("guest declined")
		},
	})
	resolved, err := session.Run(waitCtx)
	if err == nil {
		return resolved, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return c.expire(ctx, req)
	}
	if ctx.Err() != nil {
		return session.Request(), ctx.Err()
	}
	return nil, err
}

func (c *Controller) expire(ctx context.Context, req *models.JoinRequest) (*models.JoinRequest, error) {
	expired, err := c.queue.Expire(ctx, req.ID)
	if errors.Is(err, apperr.ErrAlreadyResolved) {
		current, gerr := c.queue.Get(ctx, req.ID)
		if gerr != nil {
			return nil, gerr
		}
		return current, StatusError(current)
	}
	if err != nil {
		return nil, err
	}
	return expired, apperr.ErrRequestTimedOut
}

func (c *Controller) roomRequest(ctx context.Context, roomID string, requestID uuid.UUID) (*models.JoinRequest, error) {
	req, err := c.queue.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RoomCode != roomID {
		return nil, apperr.ErrRequestNotFound
	}
	return req, nil
}

// StatusError переводит статус заявки в ошибку для тех, кому нужны
// только одобренные заявки.
func StatusError(req *models.JoinRequest) error {
	switch req.Status {
	case models.JoinRequestApproved:
		return nil
	case models.JoinRequestPending:
		return apperr.ErrRequestPending
	}
	if req.Reason == models.ReasonTimedOut {
		return apperr.ErrRequestTimedOut
	}
	return apperr.ErrRequestRejected
}
