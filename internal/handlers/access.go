package handlers

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/admission"
	"github.com/thereayou/roomgate/internal/models"
)

// RoomAccess связывает WebSocket-хаб с допуском в комнату и присутствием.
type RoomAccess struct {
	controller *admission.Controller
	handoff    *admission.Handoff
}

func NewRoomAccess(controller *admission.Controller, handoff *admission.Handoff) *RoomAccess {
	return &RoomAccess{controller: controller, handoff: handoff}
}

func (a *RoomAccess) CanJoin(ctx context.Context, roomID, userID string) (bool, error) {
	return a.controller.IsAdmitted(ctx, admission.NormalizeRoomID(roomID), userID)
}

func (a *RoomAccess) Entered(ctx context.Context, roomID string, p models.Participant) {
	if err := a.handoff.Enter(ctx, admission.NormalizeRoomID(roomID), p); err != nil {
		log.Error().Str("module", "handlers.access").Err(err).Str("room", roomID).Str("user", p.UID).Msg("record presence")
	}
}

// Left вызывается, когда закрылось последнее соединение пользователя в комнате.
func (a *RoomAccess) Left(ctx context.Context, roomID, userID string) {
	if _, err := a.handoff.Leave(ctx, admission.NormalizeRoomID(roomID), userID); err != nil {
		log.Error().Str("module", "handlers.access").Err(err).Str("room", roomID).Str("user", userID).Msg("leave room")
	}
}
