package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/roomgate/internal/handlers/dto"
	"github.com/thereayou/roomgate/internal/services"
	"github.com/thereayou/roomgate/pkg/auth"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), services.RegisterRequest{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse(resp))
}

// Login выдаёт JWT и обновляет last_seen
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), services.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse(resp))
}

// Guest выдаёт токен гостю, который вводит только имя
func (h *AuthHandler) Guest(c *gin.Context) {
	var req dto.GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.auth.Guest(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse(resp))
}

// Logout ставит токен в черный список до истечения
func (h *AuthHandler) Logout(c *gin.Context) {
	rawToken, err := auth.ExtractTokenFromHeader(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.Logout(c.Request.Context(), rawToken); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

func authResponse(resp *services.AuthResponse) dto.AuthResponse {
	return dto.AuthResponse{
		Uid:            resp.Identity.UserID,
		Name:           resp.Identity.Name,
		Guest:          resp.Identity.Guest,
		Token:          resp.Token,
		TokenExpiresAt: resp.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
