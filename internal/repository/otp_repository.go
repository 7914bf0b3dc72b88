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

// ErrCodeNotRedeemable is returned when a one-time code or reset token is unknown, used or expired.
var ErrCodeNotRedeemable = errors.New("not redeemable")

// OTPRepository persists one-time login codes.
type OTPRepository struct {
	db *sqlx.DB
}

// NewOTPRepository creates a new OTPRepository.
func NewOTPRepository(db *sqlx.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Create stores a new code and retires any still-unused codes for the same subject.
func (r *OTPRepository) Create(ctx context.Context, otp *models.OTPCode) (err error) {
	if otp.ID == "" {
		otp.ID = uuid.NewString()
	}
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin otp tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	retire := tx.Rebind(`UPDATE otp_codes SET used = TRUE, used_at = ? WHERE registration_number = ? AND used = FALSE`)
	if _, err = tx.ExecContext(ctx, retire, otp.CreatedAt, otp.Subject); err != nil {
		return fmt.Errorf("retire otp codes: %w", err)
	}

	const insert = `INSERT INTO otp_codes (id, registration_number, code, expires_at, used, created_at) VALUES (:id, :registration_number, :code, :expires_at, :used, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, otp); err != nil {
		return fmt.Errorf("create otp code: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit otp tx: %w", err)
	}
	return nil
}

// Redeem marks the newest unused code of subject as used when it matches
// code and has not expired at now. The conditional update guarantees a single
// winner under concurrent redemption.
func (r *OTPRepository) Redeem(ctx context.Context, subject, code string, now time.Time) error {
	lookup := r.db.Rebind(`SELECT id, registration_number, code, expires_at, used, used_at, created_at FROM otp_codes WHERE registration_number = ? AND used = FALSE ORDER BY created_at DESC LIMIT 1`)
	var otp models.OTPCode
	if err := r.db.GetContext(ctx, &otp, lookup, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCodeNotRedeemable
		}
		return fmt.Errorf("find otp code: %w", err)
	}
	if !otp.Redeemable(code, now) {
		return ErrCodeNotRedeemable
	}

	return markUsed(ctx, r.db, "otp_codes", otp.ID, now)
}

type rebindExecer interface {
	sqlx.ExecerContext
	Rebind(query string) string
}

func markUsed(ctx context.Context, db rebindExecer, table, id string, now time.Time) error {
	query := db.Rebind(fmt.Sprintf(`UPDATE %s SET used = TRUE, used_at = ? WHERE id = ? AND used = FALSE`, table))
	res, err := db.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("mark %s used: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark %s used: %w", table, err)
	}
	if affected != 1 {
		return ErrCodeNotRedeemable
	}
	return nil
}
