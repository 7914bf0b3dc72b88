package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/service"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/response"
	"github.com/noah-isme/academy-api/pkg/session"
	"github.com/noah-isme/academy-api/pkg/token"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	RequestOTP(ctx context.Context, req models.RequestOTPRequest) (*models.MessageResponse, error)
	VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.LoginResponse, error)
	ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (*models.MessageResponse, error)
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (*models.MessageResponse, error)
	ChangePassword(ctx context.Context, claims *token.Claims, req models.ChangePasswordRequest) (*models.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.LoginResponse, error)
	Logout(ctx context.Context, accessToken, refreshToken string, meta models.RequestMeta)
	CurrentUser(ctx context.Context, claims *token.Claims) (*models.UserSummary, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	service        authService
	cookies        *session.CookieManager
	logoutRedirect string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc authService, cookies *session.CookieManager, logoutRedirect string) *AuthHandler {
	if logoutRedirect == "" {
		logoutRedirect = "/"
	}
	return &AuthHandler{service: svc, cookies: cookies, logoutRedirect: logoutRedirect}
}

// Login godoc
// @Summary Login with registration number and password
// @Description Authenticate by registration number. A trailing "p" or viewAs=parent signs in as the student's parent.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.Meta = requestMeta(c)

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.signIn(c, res)
}

// RequestOTP godoc
// @Summary Request a one-time login code
// @Description Always answers with the same message whether or not the account exists.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RequestOTPRequest true "OTP request payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/request-otp [post]
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req models.RequestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid otp request payload"))
		return
	}
	req.Meta = requestMeta(c)

	res, err := h.service.RequestOTP(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// VerifyOTP godoc
// @Summary Sign in with a one-time code
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.VerifyOTPRequest true "OTP verification payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid otp payload"))
		return
	}
	req.Meta = requestMeta(c)

	res, err := h.service.VerifyOTP(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.signIn(c, res)
}

// ForgotPassword godoc
// @Summary Request a password reset link
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ForgotPasswordRequest true "Forgot password payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid forgot password payload"))
		return
	}
	req.Meta = requestMeta(c)

	res, err := h.service.ForgotPassword(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// ResetPassword godoc
// @Summary Reset password with a reset token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ResetPasswordRequest true "Reset password payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset password payload"))
		return
	}
	req.Meta = requestMeta(c)

	res, err := h.service.ResetPassword(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// ChangePassword godoc
// @Summary Change password of the signed-in user
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ChangePasswordRequest true "Change password payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid change password payload"))
		return
	}
	req.Meta = requestMeta(c)

	res, err := h.service.ChangePassword(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.signIn(c, res)
}

// Refresh godoc
// @Summary Rotate the token pair
// @Description Reads the refresh token from the body or, when absent, the refresh_token cookie.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshRequest false "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
		return
	}

	raw := req.RefreshToken
	if raw == "" {
		raw = session.RefreshToken(c)
	}
	if raw == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.Refresh(c.Request.Context(), raw, requestMeta(c))
	if err != nil {
		h.cookies.Clear(c)
		response.Error(c, err)
		return
	}

	h.signIn(c, res)
}

// Logout godoc
// @Summary Sign out
// @Description Revokes the presented tokens and clears the session cookies. GET redirects to the configured page.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Success 302 {string} string "Redirect"
// @Router /auth/logout [post]
// @Router /auth/logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	access := middleware.BearerToken(c)
	refresh := session.RefreshToken(c)
	if c.Request.Method == http.MethodPost && refresh == "" {
		var req models.RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			refresh = req.RefreshToken
		}
	}

	h.service.Logout(c.Request.Context(), access, refresh, requestMeta(c))
	h.cookies.Clear(c)

	if c.Request.Method == http.MethodGet {
		c.Header("Cache-Control", "no-store")
		c.Redirect(http.StatusFound, h.logoutRedirect)
		return
	}

	response.JSON(c, http.StatusOK, models.MessageResponse{Message: service.MessageLoggedOut}, nil)
}

// CurrentUser godoc
// @Summary Current user
// @Description Returns the signed-in identity with the role carried by the token.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/user [get]
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.CurrentUser(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

func (h *AuthHandler) signIn(c *gin.Context, res *models.LoginResponse) {
	h.cookies.Attach(c, res.AccessToken, res.RefreshToken)
	response.JSON(c, http.StatusOK, res, nil)
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
