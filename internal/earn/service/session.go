package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/pkg/cryptox"
	"github.com/nightcapdev/hostdeck/pkg/httpx"
	"github.com/nightcapdev/hostdeck/pkg/idx"
)

const DefaultSessionTTL = 12 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSession     = errors.New("invalid session token")
)

// SessionService issues and verifies dashboard session tokens (HS256 JWTs
// carried in the session cookie). It also derives the per-user signing
// secret the client uses for reward prepare signatures.
type SessionService struct {
	Store  store.Store
	Secret []byte // HMAC key for session JWTs and derived secrets
	TTL    time.Duration
}

type sessionJWTClaims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// LoginResult is handed back to the client after authentication.
type LoginResult struct {
	Token         string
	UserID        string
	Username      string
	Admin         bool
	SigningSecret string
}

// Login authenticates a user and mints a session token.
func (s *SessionService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so user enumeration via latency is harder.
			_ = cryptox.VerifyPassword(password, dummyHash)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.mint(user)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Token:         token,
		UserID:        user.ID,
		Username:      user.Username,
		Admin:         user.Admin,
		SigningSecret: s.SigningSecretFor(user.ID),
	}, nil
}

// Register creates a user with a zero-balance wallet.
func (s *SessionService) Register(ctx context.Context, username, password string, admin bool) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Admin:        admin,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.Wallets().CreateWallet(ctx, user.ID)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// VerifySession implements httpx.SessionVerifier.
func (s *SessionService) VerifySession(token string) (httpx.SessionClaims, error) {
	var claims sessionJWTClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return httpx.SessionClaims{}, ErrInvalidSession
	}

	return httpx.SessionClaims{
		UserID: claims.Subject,
		Admin:  claims.Admin,
	}, nil
}

// SigningSecretFor derives the client-held reward signing secret for a user.
// Deliberately a separate derivation from anything token-related, so leaking
// one never leaks the other.
func (s *SessionService) SigningSecretFor(userID string) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte("earn-prepare|" + userID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *SessionService) mint(user domain.User) (string, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()

	claims := sessionJWTClaims{
		Admin: user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        idx.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// dummyHash is a syntactically valid argon2 hash used to equalize the cost
// of login attempts against unknown usernames.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
