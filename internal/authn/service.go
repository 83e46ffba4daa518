// Package authn verifies TOTP codes and releases stored keys.
package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/keywarden/keywarden/internal/ratelimit"
	"github.com/keywarden/keywarden/internal/store"
	"github.com/keywarden/keywarden/internal/twofactor"
	"github.com/keywarden/keywarden/internal/validate"
)

var (
	// ErrInvalidUID indicates a malformed user identifier.
	ErrInvalidUID = errors.New("invalid uid")
	// ErrAuthenticationFailed covers a wrong code and an unregistered UID
	// alike, so responses do not reveal registration state.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrRateLimited indicates the per-UID attempt budget is exhausted.
	ErrRateLimited = errors.New("too many attempts")
)

// Service implements Authenticate over a credential store.
type Service struct {
	store        store.Store
	limiter      *ratelimit.Manager
	failureDelay time.Duration

	nowFn   func() time.Time
	sleepFn func(time.Duration)
}

// NewService constructs a Service. Nil nowFn/sleepFn default to the clock.
func NewService(st store.Store, limiter *ratelimit.Manager, failureDelay time.Duration, nowFn func() time.Time, sleepFn func(time.Duration)) *Service {
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = time.Sleep
	}
	return &Service{
		store:        st,
		limiter:      limiter,
		failureDelay: failureDelay,
		nowFn:        nowFn,
		sleepFn:      sleepFn,
	}
}

// Authenticate verifies a TOTP code for the UID and, on success, returns the
// stored key. Failures suspend the calling request for the configured delay
// before returning; the delay never blocks other requests.
func (s *Service) Authenticate(ctx context.Context, uid, code string) (string, error) {
	if !validate.UID(uid) {
		return "", ErrInvalidUID
	}
	uid = validate.NormalizeUID(uid)

	result, errAllow := s.limiter.Allow(ctx, ratelimit.KeyForUID(uid))
	if errAllow != nil {
		return "", fmt.Errorf("authenticate %s: rate limit: %w", uid, errAllow)
	}
	if !result.Allowed {
		log.WithField("uid", uid).Warn("authentication attempts rate limited")
		return "", ErrRateLimited
	}

	if !validate.Code(code) {
		return "", s.fail(uid, "malformed code")
	}

	state, errRead := s.store.Read(ctx, uid, store.FieldTOTP)
	if errRead != nil {
		if errors.Is(errRead, store.ErrNotFound) || errors.Is(errRead, store.ErrInvalidUID) {
			// Unregistered UIDs get the same outcome as a bad code.
			return "", s.fail(uid, "not registered")
		}
		return "", fmt.Errorf("authenticate %s: read totp: %w", uid, errRead)
	}

	ok, errVerify := twofactor.Verify(string(state), code, s.nowFn())
	if errVerify != nil {
		return "", fmt.Errorf("authenticate %s: %w", uid, errVerify)
	}
	if !ok {
		return "", s.fail(uid, "code mismatch")
	}

	key, errKey := s.store.Read(ctx, uid, store.FieldKey)
	if errKey != nil {
		return "", fmt.Errorf("authenticate %s: read key: %w", uid, errKey)
	}

	log.WithField("uid", uid).Info("authenticated user")
	return string(key), nil
}

// fail suspends the current request and returns the generic failure. The
// delay is a coarse brake on online guessing; the limiter is the real
// attempt budget.
func (s *Service) fail(uid, reason string) error {
	log.WithField("uid", uid).WithField("reason", reason).Warn("authentication failed")
	if s.failureDelay > 0 {
		s.sleepFn(s.failureDelay)
	}
	return ErrAuthenticationFailed
}
