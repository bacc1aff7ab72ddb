package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/admission"
	"github.com/thereayou/roomgate/internal/websocket"
	"github.com/thereayou/roomgate/pkg/apperr"
)

const commandTimeout = 10 * time.Second

// CommandHandler выполняет команды администратора, пришедшие по WebSocket.
type CommandHandler struct {
	controller *admission.Controller
	queue      *admission.Queue
}

func NewCommandHandler(controller *admission.Controller, queue *admission.Queue) *CommandHandler {
	return &CommandHandler{controller: controller, queue: queue}
}

type resolvePayload struct {
	RequestID uuid.UUID `json:"request_id"`
}

func (h *CommandHandler) HandleMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeJoinApprove:
		return h.handleResolve(client, msg, true)

	case websocket.TypeJoinReject:
		return h.handleResolve(client, msg, false)

	default:
		log.Debug().Str("module", "handlers.ws").Str("type", string(msg.Type)).Msg("unknown message type")
		return nil
	}
}

func (h *CommandHandler) handleResolve(client *websocket.Client, msg *websocket.Message, approve bool) error {
	if msg.RoomID == "" {
		return websocket.ErrInvalidMessage
	}

	var payload resolvePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.RequestID == uuid.Nil {
		return websocket.ErrInvalidMessage
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	req, err := h.controller.Resolve(ctx, msg.RoomID, payload.RequestID, client.UserID, approve)
	switch {
	case errors.Is(err, apperr.ErrAlreadyResolved):
		// Второй клик или вторая вкладка: отвечаем текущим состоянием заявки
		log.Debug().Str("module", "handlers.ws").Str("request", payload.RequestID.String()).Msg("join request already resolved")
		if req, err = h.queue.Get(ctx, payload.RequestID); err != nil {
			return err
		}
	case errors.Is(err, apperr.ErrForbidden):
		return websocket.ErrUnauthorized
	case err != nil:
		return err
	}

	// Ответ самому администратору, остальные узнают о решении через шину
	return client.SendMessage(websocket.TypeJoinResolved, req)
}
