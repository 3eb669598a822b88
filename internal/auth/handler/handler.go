// Package handler exposes the auth service over HTTP (gin).
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"otp-auth-service/internal/auth/service"
	"otp-auth-service/internal/server/middleware"
)

// AuthService is the subset of service.AuthService used by the handler.
type AuthService interface {
	RequestOTP(ctx context.Context, phone string) (*service.OTPResult, error)
	VerifyOTP(ctx context.Context, phone, code string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Handler serves the /auth routes.
type Handler struct {
	auth AuthService
	log  *slog.Logger
}

// NewHandler returns a Handler backed by auth. log may be nil (slog.Default()).
func NewHandler(auth AuthService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{auth: auth, log: log}
}

// RegisterRoutes mounts the auth routes under /auth. requireAuth guards GET /auth/me.
func (h *Handler) RegisterRoutes(r gin.IRouter, requireAuth gin.HandlerFunc) {
	g := r.Group("/auth")
	g.POST("/request-otp", h.RequestOTP)
	g.POST("/verify-otp", h.VerifyOTP)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	g.GET("/me", requireAuth, h.Me)
}

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Phone       string `json:"phone"`
}

func (r phoneRequest) phone() string {
	if r.PhoneNumber != "" {
		return r.PhoneNumber
	}
	return r.Phone
}

type verifyRequest struct {
	phoneRequest
	Code string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userView struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RequestOTP handles POST /auth/request-otp.
func (h *Handler) RequestOTP(c *gin.Context) {
	var req phoneRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.auth.RequestOTP(c.Request.Context(), req.phone())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "OTP generated",
		"expiresIn": res.ExpiresIn,
	})
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.auth.VerifyOTP(c.Request.Context(), req.phone(), req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    userView{ID: res.User.ID, PhoneNumber: res.User.PhoneNumber},
		"tokens":  tokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken},
	})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "accessToken": res.AccessToken})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me handles GET /auth/me and returns the identity from the Bearer access token.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}
	phone, _ := middleware.GetPhoneNumber(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    userView{ID: userID, PhoneNumber: phone},
	})
}

// bind decodes the JSON body into dst. An empty body leaves dst zero so field validation
// reports what is missing. Returns false after writing a 400 for malformed JSON.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return false
	}
	return true
}

// fail maps service errors to status codes in one place.
func (h *Handler) fail(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": ve.Message})
	case errors.Is(err, service.ErrOTPNotFound),
		errors.Is(err, service.ErrOTPExpired),
		errors.Is(err, service.ErrOTPMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": err.Error()})
	default:
		h.log.ErrorContext(c.Request.Context(), "auth: request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
	}
}
