package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/roomgate/internal/admission"
	"github.com/thereayou/roomgate/internal/handlers/dto"
	"github.com/thereayou/roomgate/internal/middleware"
	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

type JoinRequestOptions struct {
	// LongPollMax сколько держать запрос /wait до ответа "waiting".
	LongPollMax time.Duration
}

type JoinRequestHandler struct {
	registry   *admission.Registry
	queue      *admission.Queue
	controller *admission.Controller
	opts       JoinRequestOptions
}

func NewJoinRequestHandler(registry *admission.Registry, queue *admission.Queue, controller *admission.Controller, opts JoinRequestOptions) *JoinRequestHandler {
	if opts.LongPollMax <= 0 {
		opts.LongPollMax = 30 * time.Second
	}
	return &JoinRequestHandler{registry: registry, queue: queue, controller: controller, opts: opts}
}

// ListPending отдаёт администратору все ожидающие заявки, например после переподключения
func (h *JoinRequestHandler) ListPending(c *gin.Context) {
	code, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	pending, err := h.queue.ListPending(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}
	if pending == nil {
		pending = []models.JoinRequest{}
	}

	c.JSON(http.StatusOK, dto.PendingRequestsResponse{Requests: pending})
}

// Next отдаёт самую раннюю заявку, администратор решает их по одной
func (h *JoinRequestHandler) Next(c *gin.Context) {
	code, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	head, err := h.queue.Head(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}
	if head == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, dto.JoinRequestResponse{Request: head, State: string(admission.StateOf(head))})
}

func (h *JoinRequestHandler) Approve(c *gin.Context) {
	h.resolve(c, true)
}

func (h *JoinRequestHandler) Reject(c *gin.Context) {
	h.resolve(c, false)
}

func (h *JoinRequestHandler) resolve(c *gin.Context, approve bool) {
	id := middleware.CurrentUser(c)
	requestID, ok := parseRequestID(c)
	if !ok {
		return
	}

	req, err := h.controller.Resolve(c.Request.Context(), c.Param("code"), requestID, id.UserID, approve)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JoinRequestResponse{Request: req, State: string(admission.StateOf(req))})
}

// Get статус заявки для опроса. Видят заявитель и администратор.
func (h *JoinRequestHandler) Get(c *gin.Context) {
	id := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	code := admission.NormalizeRoomID(c.Param("code"))
	requestID, ok := parseRequestID(c)
	if !ok {
		return
	}

	req, err := h.queue.Get(ctx, requestID)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.RoomCode != code {
		respondError(c, apperr.ErrRequestNotFound)
		return
	}
	if req.UserID != id.UserID {
		isAdmin, err := h.registry.IsCreator(ctx, code, id.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !isAdmin {
			respondError(c, apperr.ErrForbidden)
			return
		}
	}

	c.JSON(http.StatusOK, dto.JoinRequestResponse{Request: req, State: string(admission.StateOf(req))})
}

// Wait держит запрос до решения по заявке или до LongPollMax
func (h *JoinRequestHandler) Wait(c *gin.Context) {
	id := middleware.CurrentUser(c)
	requestID, ok := parseRequestID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.LongPollMax)
	defer cancel()

	req, creds, err := h.controller.Await(ctx, c.Param("code"), requestID, id.UserID)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && c.Request.Context().Err() == nil:
		// Решения пока нет, клиент переподключится
		c.JSON(http.StatusOK, dto.WaitResponse{Request: req, State: string(admission.SessionWaiting)})
		return
	case req != nil && (errors.Is(err, apperr.ErrRequestTimedOut) || errors.Is(err, apperr.ErrRequestRejected)):
		c.JSON(http.StatusOK, dto.WaitResponse{Request: req, State: string(admission.SessionRejected)})
		return
	default:
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WaitResponse{Request: req, State: string(admission.StateOf(req)), Credentials: creds})
}

func (h *JoinRequestHandler) Credentials(c *gin.Context) {
	id := middleware.CurrentUser(c)
	requestID, ok := parseRequestID(c)
	if !ok {
		return
	}

	creds, err := h.controller.Credentials(c.Request.Context(), c.Param("code"), requestID, id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, creds)
}

// Delete отзывает ожидающую заявку или удаляет уже решённую
func (h *JoinRequestHandler) Delete(c *gin.Context) {
	id := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	requestID, ok := parseRequestID(c)
	if !ok {
		return
	}

	_, err := h.controller.Cancel(ctx, c.Param("code"), requestID, id.UserID)
	if errors.Is(err, apperr.ErrAlreadyResolved) {
		err = h.controller.Acknowledge(ctx, c.Param("code"), requestID, id.UserID)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *JoinRequestHandler) requireAdmin(c *gin.Context) (string, bool) {
	id := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	code := admission.NormalizeRoomID(c.Param("code"))

	if _, err := h.registry.Room(ctx, code); err != nil {
		respondError(c, err)
		return "", false
	}
	ok, err := h.registry.IsCreator(ctx, code, id.UserID)
	if err != nil {
		respondError(c, err)
		return "", false
	}
	if !ok {
		respondError(c, apperr.ErrForbidden)
		return "", false
	}
	return code, true
}

func parseRequestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return uuid.Nil, false
	}
	return id, true
}
