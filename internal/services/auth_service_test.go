package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thereayou/roomgate/internal/memstore"
	"github.com/thereayou/roomgate/pkg/apperr"
	"github.com/thereayou/roomgate/pkg/auth"
)

func newAuthService() *AuthService {
	return NewAuthService(memstore.New(), auth.NewJWTManager("secret", time.Hour), auth.NewMemoryBlacklist(), time.Hour)
}

func TestAuthService_RegisterLogin(t *testing.T) {
	ctx := context.Background()
	s := newAuthService()

	reg, err := s.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.Identity.Name != "Alice" || reg.Token == "" {
		t.Errorf("Register() = %+v", reg)
	}

	if _, err := s.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate Register() error = %v", err)
	}

	login, err := s.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	id, err := s.ValidateToken(ctx, login.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if id.UserID != reg.User.ID.String() || id.Guest {
		t.Errorf("identity = %+v", id)
	}

	if _, err := s.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Login() with wrong password error = %v", err)
	}
	if _, err := s.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "x"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Login() for unknown email error = %v", err)
	}
}

func TestAuthService_GuestAndLogout(t *testing.T) {
	ctx := context.Background()
	s := newAuthService()

	if _, err := s.Guest(ctx, "   "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Guest() with empty name error = %v", err)
	}

	guest, err := s.Guest(ctx, " Bob ")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(guest.Identity.UserID, "guest-") || guest.Identity.Name != "Bob" {
		t.Errorf("guest identity = %+v", guest.Identity)
	}
	id, err := s.ValidateToken(ctx, guest.Token)
	if err != nil || !id.Guest {
		t.Fatalf("ValidateToken() = %+v, %v", id, err)
	}

	if err := s.Logout(ctx, guest.Token); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ValidateToken(ctx, guest.Token); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("ValidateToken() after Logout error = %v", err)
	}
}
