package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
)

// PasswordResetRepository persists password reset tokens by hash.
type PasswordResetRepository struct {
	db *sqlx.DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db *sqlx.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create stores a reset token and retires older unused tokens of the same user.
func (r *PasswordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) (err error) {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	retire := tx.Rebind(`UPDATE password_reset_tokens SET used = TRUE, used_at = ? WHERE user_id = ? AND used = FALSE`)
	if _, err = tx.ExecContext(ctx, retire, token.CreatedAt, token.UserID); err != nil {
		return fmt.Errorf("retire reset tokens: %w", err)
	}

	const insert = `INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used, created_at) VALUES (:id, :user_id, :token_hash, :expires_at, :used, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, token); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reset tx: %w", err)
	}
	return nil
}

// Redeem consumes the token identified by tokenHash and stores passwordHash
// for its user in the same transaction, so a failed password write leaves
// the token usable. It returns the user id.
func (r *PasswordResetRepository) Redeem(ctx context.Context, tokenHash, passwordHash string, now time.Time) (userID string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lookup := tx.Rebind(`SELECT id, user_id, token_hash, expires_at, used, used_at, created_at FROM password_reset_tokens WHERE token_hash = ? AND used = FALSE LIMIT 1`)
	var token models.PasswordResetToken
	if err = tx.GetContext(ctx, &token, lookup, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrCodeNotRedeemable
		}
		return "", fmt.Errorf("find reset token: %w", err)
	}
	if !token.Redeemable(now) {
		return "", ErrCodeNotRedeemable
	}

	if err = markUsed(ctx, tx, "password_reset_tokens", token.ID, now); err != nil {
		return "", err
	}

	update := tx.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)
	res, err := tx.ExecContext(ctx, update, passwordHash, now, token.UserID)
	if err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	if affected == 0 {
		return "", sql.ErrNoRows
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit reset tx: %w", err)
	}
	return token.UserID, nil
}
