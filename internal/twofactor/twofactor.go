// Package twofactor wraps the TOTP primitive: secret generation, a stable
// at-rest encoding of the enrollment state, and code verification.
package twofactor

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// secretSize is the raw entropy of a generated secret in bytes.
const secretSize = 16

// Standard RFC 6238 parameters; the serialized state carries them, so they
// must not change for already-enrolled users.
const (
	period = 30
	skew   = 1
)

// Provision is the outcome of enrolling a new secret.
type Provision struct {
	// Secret is the base32 secret for manual entry in an authenticator app.
	Secret string
	// URL is the otpauth provisioning URI; it doubles as the serialized
	// at-rest state.
	URL string
}

// Generate enrolls a fresh secret for the given issuer and account label.
func Generate(issuer, account string) (Provision, error) {
	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		SecretSize:  secretSize,
	})
	if errGenerate != nil {
		return Provision{}, fmt.Errorf("twofactor: generate: %w", errGenerate)
	}
	return Provision{Secret: key.Secret(), URL: key.String()}, nil
}

// Verify checks a submitted code against the serialized state for the time
// window containing at.
func Verify(state, code string, at time.Time) (bool, error) {
	key, errParse := otp.NewKeyFromURL(state)
	if errParse != nil {
		return false, fmt.Errorf("twofactor: parse state: %w", errParse)
	}
	ok, errValidate := totp.ValidateCustom(code, key.Secret(), at.UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if errValidate != nil {
		return false, fmt.Errorf("twofactor: validate: %w", errValidate)
	}
	return ok, nil
}
