// Package handler serves the dev-only OTP lookup route.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"otp-auth-service/internal/devotp"
)

const devOTPNote = "DEV MODE ONLY"

// Handler reads codes from a devotp.Store. Only registered when dev OTP mode is enabled
// outside production.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a Handler reading from store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts GET /dev/otp.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/dev/otp", h.getOTP)
}

func (h *Handler) getOTP(c *gin.Context) {
	phone := c.Query("phoneNumber")
	if phone == "" {
		phone = c.Query("phone")
	}
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "phoneNumber is required"})
		return
	}
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "OTP not found or expired"})
		return
	}
	code, ok := h.store.Get(c.Request.Context(), phone)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "OTP not found or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "otp": code, "note": devOTPNote})
}
