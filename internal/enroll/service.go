// Package enroll orchestrates user provisioning and key/TOTP binding.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/keywarden/keywarden/internal/store"
	"github.com/keywarden/keywarden/internal/twofactor"
	"github.com/keywarden/keywarden/internal/validate"
)

var (
	// ErrEmailRequired indicates a setup request without an email.
	ErrEmailRequired = errors.New("email is required")
	// ErrInvalidUID indicates a malformed user identifier.
	ErrInvalidUID = errors.New("invalid uid")
	// ErrInvalidKey indicates a malformed key.
	ErrInvalidKey = errors.New("invalid key")
	// ErrUnknownUID indicates the uid was never provisioned.
	ErrUnknownUID = errors.New("uid not provisioned")
	// ErrAlreadyRegistered indicates the uid already holds a key and TOTP
	// secret.
	ErrAlreadyRegistered = errors.New("already registered")
)

// UIDGenerator produces fresh user identifiers. Implementations must return
// 32 lowercase hex characters with cryptographically adequate randomness.
type UIDGenerator func() string

// NewUID is the default generator: a UUIDv4 with dashes stripped.
func NewUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Registration is the successful outcome of Register.
type Registration struct {
	// URI is the otpauth provisioning URI for authenticator apps.
	URI string
	// Secret is the plaintext base32 secret for manual entry.
	Secret string
}

// Service implements Setup and Register over a credential store.
type Service struct {
	store  store.Store
	issuer string
	newUID UIDGenerator
}

// NewService constructs a Service. A nil generator falls back to NewUID.
func NewService(st store.Store, issuer string, newUID UIDGenerator) *Service {
	if newUID == nil {
		newUID = NewUID
	}
	return &Service{store: st, issuer: issuer, newUID: newUID}
}

// Setup provisions a namespace for a new user and records the email. The
// returned UID is the handle for all later operations. Collisions are not
// guarded beyond generator randomness; a rejected Create is surfaced for the
// client to retry with a fresh Setup call.
func (s *Service) Setup(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", ErrEmailRequired
	}

	uid := s.newUID()
	if errCreate := s.store.Create(ctx, uid); errCreate != nil {
		return "", fmt.Errorf("setup %s: %w", uid, errCreate)
	}
	if errWrite := s.store.Write(ctx, uid, store.FieldEmail, []byte(email)); errWrite != nil {
		return "", fmt.Errorf("setup %s: write email: %w", uid, errWrite)
	}

	log.WithField("uid", uid).Info("provisioned user")
	return uid, nil
}

// Register binds a key and a fresh TOTP secret to a provisioned UID,
// exactly once. The exclusive create of the TOTP field is the sole
// registration gate: of any concurrent callers, one wins and writes the key,
// the rest get ErrAlreadyRegistered without mutating anything.
func (s *Service) Register(ctx context.Context, uid, key string) (Registration, error) {
	if !validate.UID(uid) {
		return Registration{}, ErrInvalidUID
	}
	if !validate.Key(key) {
		return Registration{}, ErrInvalidKey
	}
	uid = validate.NormalizeUID(uid)

	exists, errExists := s.store.Exists(ctx, uid)
	if errExists != nil {
		return Registration{}, fmt.Errorf("register %s: %w", uid, errExists)
	}
	if !exists {
		return Registration{}, ErrUnknownUID
	}

	email, errRead := s.store.Read(ctx, uid, store.FieldEmail)
	if errRead != nil {
		// A provisioned namespace always has an email; its absence is a
		// broken invariant, not a client error.
		return Registration{}, fmt.Errorf("register %s: read email: %w", uid, errRead)
	}

	provision, errGenerate := twofactor.Generate(s.issuer, string(email)+" "+uid)
	if errGenerate != nil {
		return Registration{}, fmt.Errorf("register %s: %w", uid, errGenerate)
	}

	errGate := s.store.WriteExclusive(ctx, uid, store.FieldTOTP, []byte(provision.URL))
	if errGate != nil {
		if errors.Is(errGate, store.ErrFieldExists) {
			return Registration{}, ErrAlreadyRegistered
		}
		if errors.Is(errGate, store.ErrNotFound) {
			return Registration{}, ErrUnknownUID
		}
		return Registration{}, fmt.Errorf("register %s: write totp: %w", uid, errGate)
	}

	if errWrite := s.store.Write(ctx, uid, store.FieldKey, []byte(key)); errWrite != nil {
		return Registration{}, fmt.Errorf("register %s: write key: %w", uid, errWrite)
	}

	log.WithField("uid", uid).Info("registered user")
	return Registration{URI: provision.URL, Secret: provision.Secret}, nil
}
