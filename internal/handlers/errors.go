package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/pkg/apperr"
)

// respondError переводит доменную ошибку в HTTP-ответ.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "failed, please try again"

	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrRoomNotFound), errors.Is(err, apperr.ErrRequestNotFound), errors.Is(err, apperr.ErrUserNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, apperr.ErrForbidden), errors.Is(err, apperr.ErrNotAdmitted):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, apperr.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, apperr.ErrAlreadyResolved):
		log.Debug().Str("module", "handlers").Str("path", c.FullPath()).Msg("join request already resolved")
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrRequestPending):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, apperr.ErrRequestRejected), errors.Is(err, apperr.ErrRequestTimedOut):
		status, msg = http.StatusGone, err.Error()
	case errors.Is(err, apperr.ErrRegistryExhausted):
		log.Error().Str("module", "handlers").Err(err).Msg("room registry exhausted")
		status, msg = http.StatusServiceUnavailable, err.Error()
	default:
		log.Error().Str("module", "handlers").Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	c.JSON(status, gin.H{"error": msg})
}
