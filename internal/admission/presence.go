package admission

import (
	"context"

	"github.com/thereayou/roomgate/internal/models"
)

// Presence упорядоченное по времени входа множество живых участников.
type Presence interface {
	Join(ctx context.Context, roomID string, p models.Participant) error
	Leave(ctx context.Context, roomID, uid string) error
	List(ctx context.Context, roomID string) ([]models.Participant, error)
	Clear(ctx context.Context, roomID string) error
}
