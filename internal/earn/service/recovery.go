package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/pkg/cryptox"
)

var (
	ErrRecoveryNotEnrolled     = errors.New("recovery not enrolled")
	ErrRecoveryAlreadyEnrolled = errors.New("recovery already enrolled")
	ErrInvalidRecoveryCode     = errors.New("invalid recovery code")
)

// RecoveryService owns the break-glass admin restore flow. An admin enrolls a
// TOTP secret ahead of time; if the dashboard is ever locked out (lost
// password, revoked sessions), a valid code restores access by resetting the
// password and re-granting the admin flag.
type RecoveryService struct {
	Store  store.Store
	Issuer string
}

type RecoveryEnrollment struct {
	Secret       string `json:"secret"`
	ProvisionURI string `json:"provisionUri"`
}

// Enroll generates and stores a TOTP secret for the user. Refuses to
// overwrite an existing enrollment; re-enrollment goes through Restore first.
func (s *RecoveryService) Enroll(ctx context.Context, userID string) (RecoveryEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return RecoveryEnrollment{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user.RecoverySecret != nil && *user.RecoverySecret != "" {
		return RecoveryEnrollment{}, ErrRecoveryAlreadyEnrolled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return RecoveryEnrollment{}, fmt.Errorf("failed to generate recovery secret: %w", err)
	}

	secret := key.Secret()
	if err := s.Store.Users().UpdateRecoverySecret(ctx, userID, secret); err != nil {
		return RecoveryEnrollment{}, fmt.Errorf("failed to store recovery secret: %w", err)
	}

	return RecoveryEnrollment{Secret: secret, ProvisionURI: key.URL()}, nil
}

// Restore verifies the TOTP code for the named user, resets the password and
// re-grants the admin flag. The spent secret is cleared so a captured code
// cannot be replayed after the window.
func (s *RecoveryService) Restore(ctx context.Context, username, code, newPassword string) error {
	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRecoveryCode
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if user.RecoverySecret == nil || *user.RecoverySecret == "" {
		return ErrRecoveryNotEnrolled
	}
	if !totp.Validate(code, *user.RecoverySecret) {
		return ErrInvalidRecoveryCode
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}
		if err := tx.Users().SetAdmin(ctx, user.ID, true); err != nil {
			return fmt.Errorf("failed to restore admin flag: %w", err)
		}
		return tx.Users().UpdateRecoverySecret(ctx, user.ID, "")
	})
}
