package service

import (
	"context"
	"fmt"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/pkg/cryptox"
)

// UsersService is the admin-facing user management surface. All of its
// mutations sit behind the sensitive-path envelope in the HTTP layer.
type UsersService struct {
	Store    store.Store
	Sessions *SessionService
}

func (s *UsersService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.Store.Users().ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UsersService) Get(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

func (s *UsersService) Create(ctx context.Context, username, password string, admin bool) (domain.User, error) {
	return s.Sessions.Register(ctx, username, password, admin)
}

func (s *UsersService) SetAdmin(ctx context.Context, userID string, admin bool) error {
	return s.Store.Users().SetAdmin(ctx, userID, admin)
}

// ResetPassword replaces a user's password hash.
func (s *UsersService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
}

func (s *UsersService) Delete(ctx context.Context, userID string) error {
	return s.Store.Users().DeleteUser(ctx, userID)
}
