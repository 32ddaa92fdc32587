package domain

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Admin        bool

	// RecoverySecret is the TOTP secret for the break-glass admin restore
	// flow. Nil when recovery has not been enrolled.
	RecoverySecret *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
