package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetAdminByUsername returns an admin user, or nil when not found
func (r *Repository) GetAdminByUsername(ctx context.Context, username string) (*AdminUser, error) {
	query := `
	SELECT id, username, password_hash, role, last_login_at, created_at
	FROM ipv_admin_users
	WHERE username = $1
	`

	var u AdminUser
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.LastLoginAt, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return &u, nil
}

// CreateAdminUser inserts a new admin account
func (r *Repository) CreateAdminUser(ctx context.Context, username, passwordHash, role string) (*AdminUser, error) {
	user := &AdminUser{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO ipv_admin_users (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.PasswordHash, user.Role, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}
	return user, nil
}

// TouchAdminLogin records a successful login time
func (r *Repository) TouchAdminLogin(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE ipv_admin_users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}
