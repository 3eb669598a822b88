package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"otp-auth-service/internal/health"
)

// RegisterHTTP mounts GET /healthz (liveness) and GET /readyz (dependency pings).
func RegisterHTTP(r gin.IRouter, checker *health.Checker) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		failures := checker.Status(c.Request.Context())
		if len(failures) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		checks := make(gin.H, len(failures))
		for name, err := range failures {
			checks[name] = err.Error()
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": checks})
	})
}
