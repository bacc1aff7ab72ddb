package websocket

import (
	"errors"

	"github.com/thereayou/roomgate/pkg/apperr"
)

var (
	ErrClientQueueFull = errors.New("client message queue is full")
	ErrInvalidMessage  = errors.New("invalid message format")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotAdmitted     = apperr.ErrNotAdmitted
)
