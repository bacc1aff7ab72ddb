package admission

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/events"
	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

// SessionState то, что видит ожидающий гость.
type SessionState string

const (
	SessionWaiting  SessionState = "waiting"
	SessionApproved SessionState = "approved"
	SessionRejected SessionState = "rejected"
)

func StateOf(req *models.JoinRequest) SessionState {
	switch req.Status {
	case models.JoinRequestApproved:
		return SessionApproved
	case models.JoinRequestRejected:
		return SessionRejected
	default:
		return SessionWaiting
	}
}

type SessionOptions struct {
	PollInterval time.Duration
	// GracePeriod пауза перед OnAdmitted, чтобы клиент успел показать подтверждение.
	GracePeriod time.Duration
	Issuer      CredentialIssuer
	OnAdmitted  func(req *models.JoinRequest, creds *models.Credentials)
	OnDeclined  func(req *models.JoinRequest)
}

// Session наблюдает за одной заявкой до финального статуса. События шины
// приходят сразу, опрос очереди страхует на случай потерянного события.
type Session struct {
	queue     *Queue
	sub       events.Subscriber
	requestID uuid.UUID
	userID    string
	opts      SessionOptions

	mu    sync.RWMutex
	state SessionState
	req   *models.JoinRequest
}

func NewSession(queue *Queue, sub events.Subscriber, requestID uuid.UUID, userID string, opts SessionOptions) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Session{
		queue:     queue,
		sub:       sub,
		requestID: requestID,
		userID:    userID,
		opts:      opts,
		state:     SessionWaiting,
	}
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Request() *models.JoinRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.req
}

// Run ждёт решения и возвращает финальную заявку.
func (s *Session) Run(ctx context.Context) (*models.JoinRequest, error) {
	var deliveries <-chan events.Delivery
	if s.sub != nil {
		sub, err := s.sub.Subscribe(ctx, events.UserTopic(s.userID))
		if err != nil {
			log.Warn().Str("module", "admission.session").Err(err).Str("request", s.requestID.String()).Msg("subscribe failed, falling back to polling")
		} else {
			defer sub.Close()
			deliveries = sub.C()
		}
	}

	// Подписка оформлена до первой проверки, поэтому решение не потеряется
	req, err := s.check(ctx)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return s.finish(ctx, req), nil
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				deliveries = nil
				continue
			}
			ev := d.Event
			if ev.Type != events.JoinRequestResolved || ev.Request == nil || ev.Request.ID != s.requestID {
				continue
			}
			if !ev.Request.IsPending() {
				s.set(ev.Request)
				return s.finish(ctx, ev.Request), nil
			}

		case <-ticker.C:
			req, err := s.check(ctx)
			if errors.Is(err, apperr.ErrRequestNotFound) || errors.Is(err, apperr.ErrForbidden) {
				return nil, err
			}
			if err != nil {
				log.Warn().Str("module", "admission.session").Err(err).Str("request", s.requestID.String()).Msg("poll failed")
				continue
			}
			if !req.IsPending() {
				return s.finish(ctx, req), nil
			}
		}
	}
}

func (s *Session) check(ctx context.Context) (*models.JoinRequest, error) {
	req, err := s.queue.Get(ctx, s.requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != s.userID {
		return nil, apperr.ErrForbidden
	}
	s.set(req)
	return req, nil
}

func (s *Session) set(req *models.JoinRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = req
	s.state = StateOf(req)
}

func (s *Session) finish(ctx context.Context, req *models.JoinRequest) *models.JoinRequest {
	switch StateOf(req) {
	case SessionApproved:
		if s.opts.OnAdmitted == nil {
			return req
		}
		var creds *models.Credentials
		if s.opts.Issuer != nil {
			c, err := s.opts.Issuer.Issue(req.RoomCode, req.UserID, req.UserName)
			if err != nil {
				log.Error().Str("module", "admission.session").Err(err).Str("request", req.ID.String()).Msg("issue credentials")
			}
			creds = c
		}
		if s.opts.GracePeriod > 0 {
			timer := time.NewTimer(s.opts.GracePeriod)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return req
			}
		}
		s.opts.OnAdmitted(req, creds)

	case SessionRejected:
		if s.opts.OnDeclined != nil {
			s.opts.OnDeclined(req)
		}
	}
	return req
}
