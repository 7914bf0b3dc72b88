package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/password"
	"github.com/noah-isme/academy-api/pkg/token"
)

// Generic acknowledgements. They never depend on whether the account exists.
const (
	MessageOTPSent        = "If the account exists, a one-time code has been sent"
	MessageResetSent      = "If the email is registered, a password reset link has been sent"
	MessagePasswordReset  = "Password has been reset"
	MessageLoggedOut      = "Logged out"
	defaultMinPasswordLen = 6
)

type authUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByRegistrationNumber(ctx context.Context, registrationNumber string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type otpStore interface {
	Create(ctx context.Context, otp *models.OTPCode) error
	Redeem(ctx context.Context, subject, code string, now time.Time) error
}

type resetTokenStore interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	Redeem(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)
}

type tokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, until time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	RevokeUserTokens(ctx context.Context, userID string, at time.Time, ttl time.Duration) error
	UserTokensRevokedAt(ctx context.Context, userID string) (time.Time, error)
}

type attemptLimiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int, error)
	Count(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

type authNotifier interface {
	SendOTP(ctx context.Context, user *models.User, code string, ttl time.Duration) error
	SendPasswordReset(ctx context.Context, user *models.User, rawToken string, ttl time.Duration) error
}

type credentialHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type tokenCodec interface {
	IssueAccessToken(userID, role string) (string, *token.Claims, error)
	IssueRefreshToken(userID, role string) (string, *token.Claims, error)
	Verify(tokenString string) (*token.Claims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

type authEventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	OTPTTL            time.Duration
	ResetTTL          time.Duration
	MinPasswordLength int
	LoginMaxAttempts  int
	LoginLockout      time.Duration
	OTPRequestLimit   int
	OTPRequestWindow  time.Duration
}

// AuthDeps groups the collaborators of AuthService. Revoker, Limiter and
// Events may be nil.
type AuthDeps struct {
	Users    authUserRepository
	OTPs     otpStore
	Resets   resetTokenStore
	Revoker  tokenRevoker
	Limiter  attemptLimiter
	Notifier authNotifier
	Hasher   credentialHasher
	Tokens   tokenCodec
	Events   authEventRecorder
}

// AuthService provides authentication use cases.
type AuthService struct {
	users     authUserRepository
	otps      otpStore
	resets    resetTokenStore
	revoker   tokenRevoker
	limiter   attemptLimiter
	notifier  authNotifier
	hasher    credentialHasher
	tokens    tokenCodec
	events    authEventRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(deps AuthDeps, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.OTPTTL <= 0 {
		config.OTPTTL = 10 * time.Minute
	}
	if config.ResetTTL <= 0 {
		config.ResetTTL = time.Hour
	}
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = defaultMinPasswordLen
	}
	return &AuthService{
		users:     deps.Users,
		otps:      deps.OTPs,
		resets:    deps.Resets,
		revoker:   deps.Revoker,
		limiter:   deps.Limiter,
		notifier:  deps.Notifier,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		events:    deps.Events,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates a registration number and password.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "registrationNumber and password are required")
	}
	identity, err := ResolveLogin(req.RegistrationNumber, req.ViewAs)
	if err != nil {
		return nil, err
	}

	attemptKey := "login:" + identity.Identifier
	if s.lockedOut(ctx, attemptKey) {
		s.record("login", OutcomeThrottle)
		return nil, appErrors.Clone(appErrors.ErrTooManyRequests, "")
	}

	user, err := s.users.FindByRegistrationNumber(ctx, identity.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.loginFailed(ctx, attemptKey)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	role, err := EffectiveRole(user, identity)
	if err != nil {
		s.loginFailed(ctx, attemptKey)
		return nil, err
	}

	if !user.HasPassword() {
		s.record("login", OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrPasswordNotSet, "")
	}

	if !s.hasher.Verify(req.Password, *user.PasswordHash) {
		s.loginFailed(ctx, attemptKey)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	if !user.Active {
		s.record("login", OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, attemptKey); err != nil {
			s.logger.Warn("failed to reset login attempts", zap.Error(err))
		}
	}

	resp, err := s.issue(ctx, user, role)
	if err != nil {
		return nil, err
	}

	s.touchLastLogin(ctx, user.ID)
	s.audit(ctx, user.ID, models.AuditActionLogin, fmt.Sprintf(`{"role":%q}`, role), req.Meta)
	s.record("login", OutcomeSuccess)
	return resp, nil
}

// RequestOTP issues and delivers a one-time code. The response is the same
// for known and unknown identifiers.
func (s *AuthService) RequestOTP(ctx context.Context, req models.RequestOTPRequest) (*models.MessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "registrationNumber is required")
	}
	identity, err := ResolveLogin(req.RegistrationNumber, req.ViewAs)
	if err != nil {
		return nil, err
	}
	ack := &models.MessageResponse{Message: MessageOTPSent}

	if s.limiter != nil && s.config.OTPRequestLimit > 0 {
		count, err := s.limiter.Hit(ctx, "otp:"+identity.OTPSubject(), s.config.OTPRequestWindow)
		if err != nil {
			s.logger.Warn("failed to count otp requests", zap.Error(err))
		} else if count > s.config.OTPRequestLimit {
			s.record("request_otp", OutcomeThrottle)
			return nil, appErrors.Clone(appErrors.ErrTooManyRequests, "")
		}
	}

	user, err := s.users.FindByRegistrationNumber(ctx, identity.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.record("request_otp", OutcomeRejected)
			return ack, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if _, err := EffectiveRole(user, identity); err != nil || !user.Active || user.EmailAddress() == "" {
		s.logger.Debug("otp not issued", zap.String("user_id", user.ID), zap.Bool("active", user.Active))
		s.record("request_otp", OutcomeRejected)
		return ack, nil
	}

	code, err := GenerateOTP()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate otp")
	}
	now := s.now()
	if err := s.otps.Create(ctx, &models.OTPCode{
		Subject:   identity.OTPSubject(),
		Code:      code,
		ExpiresAt: now.Add(s.config.OTPTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store otp")
	}

	if err := s.notifier.SendOTP(ctx, user, code, s.config.OTPTTL); err != nil {
		s.logger.Error("failed to queue otp delivery", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.record("request_otp", OutcomeSuccess)
	return ack, nil
}

// VerifyOTP exchanges a one-time code for a token pair.
func (s *AuthService) VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "registrationNumber and otp are required")
	}
	identity, err := ResolveLogin(req.RegistrationNumber, req.ViewAs)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByRegistrationNumber(ctx, identity.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.record("verify_otp", OutcomeFailure)
			return nil, appErrors.Clone(appErrors.ErrInvalidOTP, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	role, err := EffectiveRole(user, identity)
	if err != nil {
		s.record("verify_otp", OutcomeFailure)
		return nil, err
	}

	code := strings.ReplaceAll(strings.TrimSpace(req.OTP), " ", "")
	if err := s.otps.Redeem(ctx, identity.OTPSubject(), code, s.now()); err != nil {
		if errors.Is(err, repository.ErrCodeNotRedeemable) {
			s.record("verify_otp", OutcomeFailure)
			return nil, appErrors.Clone(appErrors.ErrInvalidOTP, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to redeem otp")
	}

	if !user.Active {
		s.record("verify_otp", OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	resp, err := s.issue(ctx, user, role)
	if err != nil {
		return nil, err
	}

	s.touchLastLogin(ctx, user.ID)
	s.audit(ctx, user.ID, models.AuditActionOTPLogin, fmt.Sprintf(`{"role":%q}`, role), req.Meta)
	s.record("verify_otp", OutcomeSuccess)
	return resp, nil
}

// ForgotPassword starts the reset flow. The response never reveals whether
// the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (*models.MessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a valid email is required")
	}
	ack := &models.MessageResponse{Message: MessageResetSent}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.record("forgot_password", OutcomeRejected)
			return ack, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if !user.Active {
		s.record("forgot_password", OutcomeRejected)
		return ack, nil
	}

	raw, digest, err := generateResetToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate reset token")
	}
	now := s.now()
	if err := s.resets.Create(ctx, &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: digest,
		ExpiresAt: now.Add(s.config.ResetTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset token")
	}

	if err := s.notifier.SendPasswordReset(ctx, user, raw, s.config.ResetTTL); err != nil {
		s.logger.Error("failed to queue reset delivery", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.record("forgot_password", OutcomeSuccess)
	return ack, nil
}

// ResetPassword consumes a reset token and sets a new password. Every token
// issued to the user before the reset stops verifying.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (*models.MessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "token and newPassword are required")
	}
	if err := s.checkPassword(req.NewPassword); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := s.now()
	userID, err := s.resets.Redeem(ctx, hashResetToken(strings.TrimSpace(req.Token)), digest, now)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotRedeemable) || errors.Is(err, sql.ErrNoRows) {
			s.record("reset_password", OutcomeFailure)
			return nil, appErrors.Clone(appErrors.ErrInvalidResetToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset password")
	}
	s.revokeUserTokens(ctx, userID, now)

	s.audit(ctx, userID, models.AuditActionPasswordReset, `{"status":"reset"}`, req.Meta)
	s.record("reset_password", OutcomeSuccess)
	return &models.MessageResponse{Message: MessagePasswordReset}, nil
}

// ChangePassword updates the password of the authenticated caller and
// returns a fresh token pair; older tokens are revoked.
func (s *AuthService) ChangePassword(ctx context.Context, claims *token.Claims, req models.ChangePasswordRequest) (*models.LoginResponse, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "currentPassword and newPassword are required")
	}
	if err := s.checkPassword(req.NewPassword); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if !user.HasPassword() || !s.hasher.Verify(req.CurrentPassword, *user.PasswordHash) {
		s.record("change_password", OutcomeFailure)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Current password is incorrect")
	}

	now := s.now()
	if err := s.setPassword(ctx, user.ID, req.NewPassword, now); err != nil {
		return nil, err
	}
	s.revokeToken(ctx, claims)

	resp, err := s.issue(ctx, user, models.UserRole(claims.Role))
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, models.AuditActionPasswordChange, `{"status":"changed"}`, req.Meta)
	s.record("change_password", OutcomeSuccess)
	return resp, nil
}

// Refresh rotates a refresh token into a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.LoginResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	claims, err := s.tokens.Verify(refreshToken)
	if err != nil || !claims.IsRefresh() {
		s.record("refresh", OutcomeFailure)
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}
	revoked, err := s.isRevoked(ctx, claims)
	if err != nil {
		return nil, err
	}
	if revoked {
		s.record("refresh", OutcomeFailure)
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		s.record("refresh", OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	role, err := EffectiveRole(user, LoginIdentity{ParentView: claims.Role == string(models.RoleParent)})
	if err != nil {
		s.record("refresh", OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}

	if s.revoker != nil {
		if err := s.revoker.RevokeToken(ctx, claims.TokenID(), claims.ExpiresAtTime()); err != nil {
			s.logger.Warn("failed to revoke rotated refresh token", zap.Error(err))
		}
	}

	resp, err := s.issue(ctx, user, role)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, models.AuditActionRefresh, `{"refresh":"rotated"}`, meta)
	s.record("refresh", OutcomeSuccess)
	return resp, nil
}

// Logout revokes whichever of the presented tokens still verify. It never fails.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string, meta models.RequestMeta) {
	var userID string
	for _, raw := range []string{accessToken, refreshToken} {
		if raw == "" {
			continue
		}
		claims, err := s.tokens.Verify(raw)
		if err != nil {
			continue
		}
		userID = claims.UserID
		s.revokeToken(ctx, claims)
	}
	if userID != "" {
		s.audit(ctx, userID, models.AuditActionLogout, `{"status":"logout"}`, meta)
	}
	s.record("logout", OutcomeSuccess)
}

// Authenticate verifies an access token for the gateway.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*token.Claims, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil || claims.IsRefresh() {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}
	revoked, err := s.isRevoked(ctx, claims)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}
	return claims, nil
}

// CurrentUser returns the authenticated identity as presented by the token.
func (s *AuthService) CurrentUser(ctx context.Context, claims *token.Claims) (*models.UserSummary, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	summary := user.Summary(models.UserRole(claims.Role))
	return &summary, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User, role models.UserRole) (*models.LoginResponse, error) {
	access, accessClaims, err := s.tokens.IssueAccessToken(user.ID, string(role))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	refresh, _, err := s.tokens.IssueRefreshToken(user.ID, string(role))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	return &models.LoginResponse{
		User:             user.Summary(role),
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int64(s.tokens.AccessTTL().Seconds()),
		RefreshExpiresIn: int64(s.tokens.RefreshTTL().Seconds()),
		IssuedAt:         accessClaims.IssuedAtTime().UTC(),
	}, nil
}

func (s *AuthService) checkPassword(plain string) error {
	if len(plain) < s.config.MinPasswordLength {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be at least %d characters", s.config.MinPasswordLength))
	}
	if len(plain) > password.MaxLength {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be at most %d bytes", password.MaxLength))
	}
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, plain string, now time.Time) error {
	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, digest, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	s.revokeUserTokens(ctx, userID, now)
	return nil
}

func (s *AuthService) revokeUserTokens(ctx context.Context, userID string, now time.Time) {
	if s.revoker == nil {
		return
	}
	if err := s.revoker.RevokeUserTokens(ctx, userID, now, s.tokens.RefreshTTL()); err != nil {
		s.logger.Warn("failed to revoke tokens after password update", zap.String("user_id", userID), zap.Error(err))
	}
}

// isRevoked fails closed: a store error is an internal error, not a pass.
func (s *AuthService) isRevoked(ctx context.Context, claims *token.Claims) (bool, error) {
	if s.revoker == nil {
		return false, nil
	}
	denied, err := s.revoker.IsTokenRevoked(ctx, claims.TokenID())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check token revocation")
	}
	if denied {
		return true, nil
	}
	cutoff, err := s.revoker.UserTokensRevokedAt(ctx, claims.UserID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check token revocation")
	}
	return !cutoff.IsZero() && claims.IssuedAtTime().Before(cutoff), nil
}

func (s *AuthService) revokeToken(ctx context.Context, claims *token.Claims) {
	if s.revoker == nil {
		return
	}
	if err := s.revoker.RevokeToken(ctx, claims.TokenID(), claims.ExpiresAtTime()); err != nil {
		s.logger.Warn("failed to revoke token", zap.String("user_id", claims.UserID), zap.Error(err))
	}
}

func (s *AuthService) lockedOut(ctx context.Context, key string) bool {
	if s.limiter == nil || s.config.LoginMaxAttempts <= 0 {
		return false
	}
	count, err := s.limiter.Count(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read login attempts", zap.Error(err))
		return false
	}
	return count >= s.config.LoginMaxAttempts
}

func (s *AuthService) loginFailed(ctx context.Context, key string) {
	s.record("login", OutcomeFailure)
	if s.limiter == nil || s.config.LoginMaxAttempts <= 0 {
		return
	}
	if _, err := s.limiter.Hit(ctx, key, s.config.LoginLockout); err != nil {
		s.logger.Warn("failed to record login attempt", zap.Error(err))
	}
}

func (s *AuthService) touchLastLogin(ctx context.Context, userID string) {
	if err := s.users.UpdateLastLogin(ctx, userID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
}

func (s *AuthService) audit(ctx context.Context, userID, action, values string, meta models.RequestMeta) {
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  []byte(values),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		CreatedAt:  s.now(),
	}); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *AuthService) record(event, outcome string) {
	if s.events != nil {
		s.events.RecordAuthEvent(event, outcome)
	}
}
