package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/service"
)

// directoryUsers is a small in-memory account store for running the real
// AuthService behind the handler.
type directoryUsers struct {
	users []*models.User
}

func (d *directoryUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range d.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (d *directoryUsers) FindByRegistrationNumber(_ context.Context, reg string) (*models.User, error) {
	for _, u := range d.users {
		if u.RegistrationNumber != nil && *u.RegistrationNumber == reg {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (d *directoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range d.users {
		if u.Email != nil && strings.EqualFold(*u.Email, email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (d *directoryUsers) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (d *directoryUsers) UpdatePassword(context.Context, string, string, time.Time) error {
	return nil
}

func (d *directoryUsers) CreateAuditLog(context.Context, *models.AuditLog) error { return nil }

type issuedCodes struct {
	otps   int
	resets int
}

func (s *issuedCodes) Create(context.Context, *models.OTPCode) error {
	s.otps++
	return nil
}

func (s *issuedCodes) Redeem(context.Context, string, string, time.Time) error { return nil }

type issuedResets struct{ codes *issuedCodes }

func (s issuedResets) Create(context.Context, *models.PasswordResetToken) error {
	s.codes.resets++
	return nil
}

func (s issuedResets) Redeem(context.Context, string, string, time.Time) (string, error) {
	return "", sql.ErrNoRows
}

type countingNotifier struct{ sent int }

func (n *countingNotifier) SendOTP(context.Context, *models.User, string, time.Duration) error {
	n.sent++
	return nil
}

func (n *countingNotifier) SendPasswordReset(context.Context, *models.User, string, time.Duration) error {
	n.sent++
	return nil
}

func newDirectoryHandler(t *testing.T) (*AuthHandler, *issuedCodes, *countingNotifier) {
	t.Helper()
	reg := "STU0042"
	email := "ana@example.com"
	users := &directoryUsers{users: []*models.User{{
		ID:                 "u-ana",
		RegistrationNumber: &reg,
		Email:              &email,
		FirstName:          "Ana",
		Role:               models.RoleStudent,
		Active:             true,
	}}}
	codes := &issuedCodes{}
	notifier := &countingNotifier{}
	svc := service.NewAuthService(service.AuthDeps{
		Users:    users,
		OTPs:     codes,
		Resets:   issuedResets{codes: codes},
		Notifier: notifier,
	}, nil, nil, service.AuthConfig{})
	return newAuthHandlerFor(svc), codes, notifier
}

func serveAck(t *testing.T, route string, handle gin.HandlerFunc, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST(route, handle)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, jsonRequest(t, http.MethodPost, route, body))
	return rec
}

func TestForgotPasswordResponseIsIdenticalForUnknownEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, codes, notifier := newDirectoryHandler(t)

	known := serveAck(t, "/auth/forgot-password", h.ForgotPassword, map[string]string{"email": "ana@example.com"})
	unknown := serveAck(t, "/auth/forgot-password", h.ForgotPassword, map[string]string{"email": "nobody@example.com"})

	require.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.Bytes(), unknown.Body.Bytes())
	assert.Equal(t, known.Header().Get("Content-Type"), unknown.Header().Get("Content-Type"))
	assert.Equal(t, 1, codes.resets)
	assert.Equal(t, 1, notifier.sent)
}

func TestRequestOTPResponseIsIdenticalForUnknownAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, codes, notifier := newDirectoryHandler(t)

	known := serveAck(t, "/auth/request-otp", h.RequestOTP, map[string]string{"registrationNumber": "STU0042"})
	unknown := serveAck(t, "/auth/request-otp", h.RequestOTP, map[string]string{"registrationNumber": "STU9999"})

	require.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.Bytes(), unknown.Body.Bytes())
	assert.Equal(t, 1, codes.otps)
	assert.Equal(t, 1, notifier.sent)
}
