// Package api wires the HTTP routes for the provisioning service.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/keywarden/keywarden/internal/authn"
	"github.com/keywarden/keywarden/internal/enroll"
	"github.com/keywarden/keywarden/internal/http/api/handlers"
)

// RegisterRoutes registers the three operations and the health check. The
// db connection may be nil when the file backend is active.
func RegisterRoutes(r *gin.Engine, enrollSvc *enroll.Service, authSvc *authn.Service, db *gorm.DB) {
	if r == nil {
		return
	}
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	enrollHandler := handlers.NewEnrollHandler(enrollSvc)
	r.POST("/setup", enrollHandler.Setup)
	r.POST("/register", enrollHandler.Register)

	authHandler := handlers.NewAuthHandler(authSvc)
	r.POST("/authenticate", authHandler.Authenticate)
}
