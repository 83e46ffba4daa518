// Package store defines the per-user credential storage contract and its
// file and database backends. Each UID owns a namespace of three named
// fields, each written at most once.
package store

import (
	"context"
	"errors"
)

// Field names a slot inside a UID namespace.
type Field string

const (
	// FieldEmail is the address captured at setup time.
	FieldEmail Field = "email"
	// FieldKey is the user's secret key, bound at registration.
	FieldKey Field = "key"
	// FieldTOTP is the serialized TOTP state, bound at registration. Its
	// exclusive creation is the sole registration gate.
	FieldTOTP Field = "totp"
)

var (
	// ErrNotFound indicates the namespace or field does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrExists indicates the namespace is already allocated.
	ErrExists = errors.New("store: namespace exists")
	// ErrFieldExists indicates an exclusive write lost to an earlier one.
	ErrFieldExists = errors.New("store: field exists")
	// ErrInvalidUID indicates a UID that failed the format check.
	ErrInvalidUID = errors.New("store: invalid uid")
)

// Store is the credential storage contract. Write and WriteExclusive fully
// replace field content; nothing is appended or partially overwritten.
type Store interface {
	// Create allocates the namespace for a new UID.
	Create(ctx context.Context, uid string) error
	// Exists reports whether the UID namespace is allocated.
	Exists(ctx context.Context, uid string) (bool, error)
	// ExistsField reports whether a specific field is present.
	ExistsField(ctx context.Context, uid string, field Field) (bool, error)
	// Write persists field content, replacing any previous value.
	Write(ctx context.Context, uid string, field Field, data []byte) error
	// WriteExclusive persists field content only if the field is absent,
	// atomically. A concurrent or earlier write surfaces as ErrFieldExists.
	WriteExclusive(ctx context.Context, uid string, field Field, data []byte) error
	// Read returns field content or ErrNotFound.
	Read(ctx context.Context, uid string, field Field) ([]byte, error)
}
