package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/keywarden/keywarden/internal/enroll"
	"github.com/keywarden/keywarden/internal/qrcode"
)

// qrSize is the rendered provisioning QR edge length in pixels.
const qrSize = 256

// EnrollHandler serves the setup and register operations.
type EnrollHandler struct {
	svc *enroll.Service
}

// NewEnrollHandler constructs an EnrollHandler.
func NewEnrollHandler(svc *enroll.Service) *EnrollHandler {
	return &EnrollHandler{svc: svc}
}

// SetupRequest is the JSON body of POST /setup.
type SetupRequest struct {
	Email string `json:"email"`
}

// Setup provisions a new user and returns the UID as plain text.
func (h *EnrollHandler) Setup(c *gin.Context) {
	var req SetupRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	uid, errSetup := h.svc.Setup(c.Request.Context(), req.Email)
	if errSetup != nil {
		if errors.Is(errSetup, enroll.ErrEmailRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": enroll.ErrEmailRequired.Error()})
			return
		}
		// Allocation failures are transient for the client: retry with a
		// fresh setup call.
		log.WithError(errSetup).Error("setup failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}

	c.String(http.StatusOK, uid)
}

// RegisterRequest is the JSON body of POST /register.
type RegisterRequest struct {
	UID string `json:"uid"`
	Key string `json:"key"`
}

// RegisterResponse is the JSON success body of POST /register.
type RegisterResponse struct {
	URI    string `json:"uri"`
	Secret string `json:"secret"`
	QR     string `json:"qr"`
}

// Register binds a key and TOTP secret to a provisioned UID.
func (h *EnrollHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	registration, errRegister := h.svc.Register(c.Request.Context(), req.UID, req.Key)
	if errRegister != nil {
		switch {
		case errors.Is(errRegister, enroll.ErrInvalidUID), errors.Is(errRegister, enroll.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": errRegister.Error()})
		case errors.Is(errRegister, enroll.ErrUnknownUID):
			c.JSON(http.StatusNotFound, gin.H{"error": enroll.ErrUnknownUID.Error()})
		case errors.Is(errRegister, enroll.ErrAlreadyRegistered):
			c.JSON(http.StatusForbidden, gin.H{"error": enroll.ErrAlreadyRegistered.Error()})
		default:
			log.WithError(errRegister).Error("register failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	qr, errRender := qrcode.RenderDataURI(registration.URI, qrSize)
	if errRender != nil {
		log.WithError(errRender).Error("render provisioning qr failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusOK, RegisterResponse{
		URI:    registration.URI,
		Secret: registration.Secret,
		QR:     qr,
	})
}
