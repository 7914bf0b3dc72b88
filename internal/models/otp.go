package models

import (
	"crypto/subtle"
	"time"
)

// OTPCode is a one-time login code bound to a login subject.
type OTPCode struct {
	ID        string     `db:"id" json:"id"`
	Subject   string     `db:"registration_number" json:"registrationNumber"`
	Code      string     `db:"code" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// Redeemable reports whether code may still be exchanged at now.
func (o *OTPCode) Redeemable(code string, now time.Time) bool {
	if o == nil || o.Used || !now.Before(o.ExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(o.Code), []byte(code)) == 1
}

// PasswordResetToken binds the hash of a reset token to a user.
type PasswordResetToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"userId"`
	TokenHash string     `db:"token_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// Redeemable reports whether the token may still be used at now.
func (t *PasswordResetToken) Redeemable(now time.Time) bool {
	return t != nil && !t.Used && now.Before(t.ExpiresAt)
}
