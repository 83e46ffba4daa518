package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/keywarden/keywarden/internal/authn"
)

// AuthHandler serves the authenticate operation.
type AuthHandler struct {
	svc *authn.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *authn.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// AuthenticateRequest is the JSON body of POST /authenticate.
type AuthenticateRequest struct {
	UID  string `json:"uid"`
	Code string `json:"code"`
}

// Authenticate verifies a TOTP code and returns the stored key as plain text.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req AuthenticateRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	key, errAuth := h.svc.Authenticate(c.Request.Context(), req.UID, req.Code)
	if errAuth != nil {
		switch {
		case errors.Is(errAuth, authn.ErrInvalidUID):
			c.JSON(http.StatusBadRequest, gin.H{"error": errAuth.Error()})
		case errors.Is(errAuth, authn.ErrAuthenticationFailed):
			c.JSON(http.StatusForbidden, gin.H{"error": authn.ErrAuthenticationFailed.Error()})
		case errors.Is(errAuth, authn.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": authn.ErrRateLimited.Error()})
		default:
			log.WithError(errAuth).Error("authenticate failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication unavailable"})
		}
		return
	}

	c.String(http.StatusOK, key)
}
