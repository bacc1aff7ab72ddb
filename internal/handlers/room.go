package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/admission"
	"github.com/thereayou/roomgate/internal/handlers/dto"
	"github.com/thereayou/roomgate/internal/middleware"
	"github.com/thereayou/roomgate/internal/models"
)

type RoomHandler struct {
	registry   *admission.Registry
	controller *admission.Controller
	handoff    *admission.Handoff
}

func NewRoomHandler(registry *admission.Registry, controller *admission.Controller, handoff *admission.Handoff) *RoomHandler {
	return &RoomHandler{registry: registry, controller: controller, handoff: handoff}
}

// CreateRoom создает комнату с новым кодом, вызывающий становится администратором
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	id := middleware.CurrentUser(c)

	room, err := h.registry.CreateRoom(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, formatRoomResponse(room, id.UserID, nil))
}

// GetRoom получает информацию о комнате. Участников видят только допущенные.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	id := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	code := admission.NormalizeRoomID(c.Param("code"))

	room, err := h.registry.Room(ctx, code)
	if err != nil {
		respondError(c, err)
		return
	}

	var participants []models.Participant
	admitted, err := h.controller.IsAdmitted(ctx, code, id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if admitted {
		if participants, err = h.handoff.Participants(ctx, code); err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, formatRoomResponse(room, id.UserID, participants))
}

// DeleteRoom удаляет комнату
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	id := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	code := admission.NormalizeRoomID(c.Param("code"))

	if err := h.registry.DeleteRoom(ctx, code, id.UserID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.handoff.CloseRoom(ctx, code); err != nil {
		log.Warn().Str("module", "handlers").Err(err).Str("room", code).Msg("clear presence")
	}

	c.JSON(http.StatusOK, gin.H{"message": "room deleted successfully"})
}

// JoinRoom пускает создателя сразу, остальных ставит в очередь
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	id := middleware.CurrentUser(c)

	var req dto.JoinRoomRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = id.Name
	}

	res, err := h.controller.Join(c.Request.Context(), admission.JoinInput{
		RoomID: c.Param("code"),
		UserID: id.UserID,
		Name:   name,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == admission.OutcomeQueued {
		status = http.StatusAccepted
	}
	c.JSON(status, dto.JoinRoomResponse{
		Outcome:     string(res.Outcome),
		Credentials: res.Credentials,
		Request:     res.Request,
	})
}

// LeaveRoom убирает пользователя из комнаты и при необходимости передает права
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	id := middleware.CurrentUser(c)

	successor, err := h.handoff.Leave(c.Request.Context(), admission.NormalizeRoomID(c.Param("code")), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LeaveRoomResponse{Successor: successor})
}

// TransferAdmin передает права администратора другому пользователю
func (h *RoomHandler) TransferAdmin(c *gin.Context) {
	id := middleware.CurrentUser(c)

	var req dto.TransferAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code := admission.NormalizeRoomID(c.Param("code"))
	if err := h.registry.TransferCreator(c.Request.Context(), code, id.UserID, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": code, "creator_id": req.UserID})
}

func formatRoomResponse(room *models.Room, userID string, participants []models.Participant) dto.RoomResponse {
	return dto.RoomResponse{
		RoomID:       room.Code,
		CreatorID:    room.CreatorID,
		IsCreator:    room.CreatorID == userID,
		CreatedAt:    room.CreatedAt,
		Participants: participants,
	}
}
