package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
	"github.com/thereayou/roomgate/pkg/auth"
)

type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

type LoginRequest struct {
	Email    string
	Password string
}

type AuthResponse struct {
	User      *models.User
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}

// Identity тот, от чьего имени выполняется запрос. У гостя нет строки в БД.
type Identity struct {
	UserID string
	Name   string
	Guest  bool
}

type AuthService struct {
	users     UserStore
	jwt       *auth.JWTManager
	blacklist auth.Blacklist
	guestTTL  time.Duration
}

func NewAuthService(users UserStore, jwt *auth.JWTManager, blacklist auth.Blacklist, guestTTL time.Duration) *AuthService {
	if guestTTL <= 0 {
		guestTTL = 12 * time.Hour
	}
	return &AuthService{users: users, jwt: jwt, blacklist: blacklist, guestTTL: guestTTL}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		LastSeenAt:   time.Now(),
		CreatedAt:    time.Now(),
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("module", "auth").Str("user", user.ID.String()).Msg("user registered")
	return s.respond(user)
}

// Login выдаёт JWT и обновляет last_seen
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.users.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, apperr.ErrUserNotFound) {
		return nil, apperr.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.ErrUnauthorized
	}

	if err := s.users.UpdateLastSeen(ctx, user.ID.String()); err != nil {
		log.Warn().Str("module", "auth").Err(err).Str("user", user.ID.String()).Msg("could not update last seen")
	}
	return s.respond(user)
}

// Guest выдаёт короткоживущий токен гостю, который вводит только имя.
func (s *AuthService) Guest(_ context.Context, name string) (*AuthResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	}

	id := Identity{UserID: "guest-" + uuid.NewString(), Name: name, Guest: true}
	token, err := s.jwt.GenerateGuest(id.UserID, name, s.guestTTL)
	if err != nil {
		return nil, err
	}
	exp, err := s.jwt.Expiry(token)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Identity: id, Token: token, ExpiresAt: exp}, nil
}

// Logout ставит токен в черный список до истечения
func (s *AuthService) Logout(ctx context.Context, token string) error {
	exp, err := s.jwt.Expiry(token)
	if err != nil {
		return apperr.ErrUnauthorized
	}
	return s.blacklist.Revoke(ctx, token, time.Until(exp))
}

func (s *AuthService) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperr.ErrUnauthorized
	}

	claims, err := s.jwt.Verify(token)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	return &Identity{UserID: claims.Subject, Name: claims.Name, Guest: claims.Guest}, nil
}

func (s *AuthService) respond(user *models.User) (*AuthResponse, error) {
	id := Identity{UserID: user.ID.String(), Name: user.Name()}
	token, err := s.jwt.Generate(id.UserID, id.Name)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	exp, err := s.jwt.Expiry(token)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, Identity: id, Token: token, ExpiresAt: exp}, nil
}
