package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestRecoveryService(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := &SessionService{Store: st, Secret: []byte(testSessionSecret)}
	svc := &RecoveryService{Store: st, Issuer: "hostdeck"}

	admin, err := sessions.Register(ctx, "root", "hunter2hunter2", true)
	require.NoError(t, err)

	enrollment, err := svc.Enroll(ctx, admin.ID)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.ProvisionURI, "hostdeck")

	t.Run("double enrollment is refused", func(t *testing.T) {
		_, err := svc.Enroll(ctx, admin.ID)
		require.ErrorIs(t, err, ErrRecoveryAlreadyEnrolled)
	})

	t.Run("bad code", func(t *testing.T) {
		err := svc.Restore(ctx, "root", "000000", "new-password-1")
		require.ErrorIs(t, err, ErrInvalidRecoveryCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := svc.Restore(ctx, "nobody", "000000", "new-password-1")
		require.ErrorIs(t, err, ErrInvalidRecoveryCode)
	})

	t.Run("restore resets password and admin flag", func(t *testing.T) {
		// Simulate a lockout: demote and break the password.
		require.NoError(t, st.Users().SetAdmin(ctx, admin.ID, false))

		code, err := totp.GenerateCode(enrollment.Secret, time.Now())
		require.NoError(t, err)
		require.NoError(t, svc.Restore(ctx, "root", code, "back-in-business"))

		res, err := sessions.Login(ctx, "root", "back-in-business")
		require.NoError(t, err)
		require.True(t, res.Admin)

		// The secret is spent; a fresh code no longer works.
		code, err = totp.GenerateCode(enrollment.Secret, time.Now())
		require.NoError(t, err)
		err = svc.Restore(ctx, "root", code, "again")
		require.ErrorIs(t, err, ErrRecoveryNotEnrolled)
	})
}
