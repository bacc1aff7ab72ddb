package models

import (
	"time"

	"github.com/google/uuid"
)

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// Причина перехода заявки в финальный статус
const (
	ReasonApproved  = "approved"
	ReasonDeclined  = "declined"
	ReasonTimedOut  = "timed_out"
	ReasonCancelled = "cancelled"
)

// JoinRequest заявка гостя на вход в комнату.
// Частичный уникальный индекс не даёт завести вторую pending-заявку
// для той же пары (комната, пользователь).
type JoinRequest struct {
	ID         uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoomCode   string            `gorm:"not null;index;uniqueIndex:idx_join_requests_pending,where:status = 'pending'" json:"room_id"`
	UserID     string            `gorm:"not null;uniqueIndex:idx_join_requests_pending,where:status = 'pending'" json:"user_id"`
	UserName   string            `gorm:"not null" json:"user_name"`
	Status     JoinRequestStatus `gorm:"not null;default:'pending';index;check:status IN ('pending','approved','rejected')" json:"status"`
	Reason     string            `json:"reason,omitempty"`
	ResolvedBy string            `json:"resolved_by,omitempty"`
	CreatedAt  time.Time         `gorm:"index" json:"timestamp"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`

	Room *Room `gorm:"foreignKey:RoomCode;references:Code;constraint:OnDelete:CASCADE" json:"-"`
}

func (r *JoinRequest) IsPending() bool {
	return r.Status == JoinRequestPending
}
