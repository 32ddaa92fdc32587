package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, username, password_hash, is_admin, recovery_secret, created_at, updated_at`

func (r *usersRepo) scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var admin int
	var secret sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &admin, &secret, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Admin = admin != 0
	u.RecoverySecret = mapNullStringPtr(secret)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, is_admin, recovery_secret, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, boolToInt(u.Admin), mapOptionalString(u.RecoverySecret), now, now)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) SetAdmin(ctx context.Context, userID string, admin bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?`,
		boolToInt(admin), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdateRecoverySecret(ctx context.Context, userID string, secret string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET recovery_secret = ?, updated_at = ? WHERE id = ?`,
		mapStringNull(secret), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		var admin int
		var secret sql.NullString
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &admin, &secret, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Admin = admin != 0
		u.RecoverySecret = mapNullStringPtr(secret)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
