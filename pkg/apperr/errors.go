// Package apperr содержит доменные ошибки, общие для всех слоёв.
// Хендлеры переводят их в HTTP-статусы через errors.Is.
package apperr

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRequestNotFound   = errors.New("join request not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrAlreadyResolved   = errors.New("join request already resolved")
	ErrRegistryExhausted = errors.New("could not generate a unique room code")
	ErrRequestTimedOut   = errors.New("join request timed out")
	ErrRequestPending    = errors.New("join request is still pending")
	ErrRequestRejected   = errors.New("join request was rejected")
	ErrNotAdmitted       = errors.New("user is not admitted to the room")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
)
