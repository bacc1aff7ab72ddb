package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/roomgate/internal/handlers/dto"
	"github.com/thereayou/roomgate/internal/middleware"
	"github.com/thereayou/roomgate/internal/services"
)

const searchLimit = 20

type UserHandler struct {
	users services.UserStore
}

func NewUserHandler(users services.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// GetMe возвращает информацию о текущем пользователе
func (h *UserHandler) GetMe(c *gin.Context) {
	id := middleware.CurrentUser(c)
	if id.Guest {
		c.JSON(http.StatusOK, gin.H{
			"id":    id.UserID,
			"name":  id.Name,
			"guest": true,
		})
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"name":         user.Name(),
		"email":        user.Email,
		"avatar_url":   user.AvatarURL,
		"created_at":   user.CreatedAt,
		"last_seen_at": user.LastSeenAt,
		"guest":        false,
	})
}

// UpdateMe обновляет информацию текущего пользователя
func (h *UserHandler) UpdateMe(c *gin.Context) {
	id := middleware.CurrentUser(c)
	if id.Guest {
		c.JSON(http.StatusForbidden, gin.H{"error": "guests have no profile"})
		return
	}

	var req dto.UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	// Обновляем только переданные поля
	if req.Username != "" {
		user.Username = req.Username
	}
	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}

	if err := h.users.UpdateUser(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"name":       user.Name(),
		"email":      user.Email,
		"avatar_url": user.AvatarURL,
	})
}

// GetUser возвращает информацию о пользователе по ID
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"name":         user.Name(),
		"avatar_url":   user.AvatarURL,
		"last_seen_at": user.LastSeenAt,
	})
}

// SearchUsers поиск пользователей по username
func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	users, err := h.users.SearchUsersByUsername(c.Request.Context(), query, searchLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := make([]gin.H, len(users))
	for i, user := range users {
		result[i] = gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"name":       user.Name(),
			"avatar_url": user.AvatarURL,
		}
	}

	c.JSON(http.StatusOK, gin.H{"users": result})
}
