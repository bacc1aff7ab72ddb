package admission

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

// Handoff следит, чтобы комната с участниками не осталась без администратора.
type Handoff struct {
	registry *Registry
	presence Presence
	now      func() time.Time
}

func NewHandoff(registry *Registry, presence Presence) *Handoff {
	return &Handoff{registry: registry, presence: presence, now: time.Now}
}

// Enter отмечает участника в живой сессии комнаты.
func (h *Handoff) Enter(ctx context.Context, roomID string, p models.Participant) error {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = h.now()
	}
	return h.presence.Join(ctx, roomID, p)
}

func (h *Handoff) Participants(ctx context.Context, roomID string) ([]models.Participant, error) {
	return h.presence.List(ctx, roomID)
}

// Leave убирает участника из комнаты. Если уходит администратор, права
// переходят к самому раннему из оставшихся участников. Возвращает
// идентификатор преемника или пустую строку, если передачи не было.
func (h *Handoff) Leave(ctx context.Context, roomID, userID string) (string, error) {
	if err := h.presence.Leave(ctx, roomID, userID); err != nil {
		return "", err
	}

	creator, err := h.registry.Creator(ctx, roomID)
	if errors.Is(err, apperr.ErrRoomNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if creator != userID {
		return "", nil
	}

	participants, err := h.presence.List(ctx, roomID)
	if err != nil {
		return "", err
	}
	var successor string
	for _, p := range participants {
		if p.UID != userID {
			successor = p.UID
			break
		}
	}
	if successor == "" {
		// Комната остаётся без активного администратора, создатель не меняется
		log.Warn().Str("module", "admission.handoff").Str("room", roomID).Str("admin", userID).Msg("admin left an empty room, no successor")
		return "", nil
	}

	err = h.registry.TransferCreator(ctx, roomID, userID, successor)
	if errors.Is(err, apperr.ErrForbidden) {
		// Права уже передали другим путём
		return "", nil
	}
	if err != nil {
		return "", err
	}

	log.Info().Str("module", "admission.handoff").Str("room", roomID).Str("from", userID).Str("to", successor).Msg("admin handoff")
	return successor, nil
}

// CloseRoom забывает присутствие удалённой комнаты.
func (h *Handoff) CloseRoom(ctx context.Context, roomID string) error {
	return h.presence.Clear(ctx, roomID)
}
