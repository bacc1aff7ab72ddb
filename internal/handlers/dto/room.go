package dto

import (
	"time"

	"github.com/thereayou/roomgate/internal/models"
)

type RoomResponse struct {
	RoomID       string               `json:"room_id"`
	CreatorID    string               `json:"creator_id"`
	IsCreator    bool                 `json:"is_creator"`
	CreatedAt    time.Time            `json:"created_at"`
	Participants []models.Participant `json:"participants,omitempty"`
}

// JoinRoomRequest: имя можно не передавать, тогда берётся имя из токена.
type JoinRoomRequest struct {
	Name string `json:"name" binding:"max=64"`
}

type JoinRoomResponse struct {
	Outcome     string              `json:"outcome"`
	Credentials *models.Credentials `json:"credentials,omitempty"`
	Request     *models.JoinRequest `json:"request,omitempty"`
}

type LeaveRoomResponse struct {
	Successor string `json:"successor,omitempty"`
}

type TransferAdminRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type JoinRequestResponse struct {
	Request *models.JoinRequest `json:"request"`
	State   string              `json:"state"`
}

type WaitResponse struct {
	Request     *models.JoinRequest `json:"request"`
	State       string              `json:"state"`
	Credentials *models.Credentials `json:"credentials,omitempty"`
}

type PendingRequestsResponse struct {
	Requests []models.JoinRequest `json:"requests"`
}
