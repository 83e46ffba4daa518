package store

import (
	"context"
	"fmt"

	"github.com/keywarden/keywarden/internal/secrets"
)

// SealedStore wraps a Store and seals the key and TOTP fields at rest. The
// email field stays plain; it is not secret material.
type SealedStore struct {
	inner  Store
	sealer *secrets.Sealer
}

// NewSealedStore wraps inner with the given sealer. A nil sealer yields a
// passthrough, so wiring stays unconditional.
func NewSealedStore(inner Store, sealer *secrets.Sealer) *SealedStore {
	return &SealedStore{inner: inner, sealer: sealer}
}

func (s *SealedStore) Create(ctx context.Context, uid string) error {
	return s.inner.Create(ctx, uid)
}

func (s *SealedStore) Exists(ctx context.Context, uid string) (bool, error) {
	return s.inner.Exists(ctx, uid)
}

func (s *SealedStore) ExistsField(ctx context.Context, uid string, field Field) (bool, error) {
	return s.inner.ExistsField(ctx, uid, field)
}

func (s *SealedStore) Write(ctx context.Context, uid string, field Field, data []byte) error {
	sealed, errSeal := s.sealFor(field, data)
	if errSeal != nil {
		return errSeal
	}
	return s.inner.Write(ctx, uid, field, sealed)
}

func (s *SealedStore) WriteExclusive(ctx context.Context, uid string, field Field, data []byte) error {
	sealed, errSeal := s.sealFor(field, data)
	if errSeal != nil {
		return errSeal
	}
	return s.inner.WriteExclusive(ctx, uid, field, sealed)
}

func (s *SealedStore) Read(ctx context.Context, uid string, field Field) ([]byte, error) {
	data, errRead := s.inner.Read(ctx, uid, field)
	if errRead != nil {
		return nil, errRead
	}
	if !sealedField(field) {
		return data, nil
	}
	plain, errOpen := s.sealer.Open(data)
	if errOpen != nil {
		return nil, fmt.Errorf("sealed store: %s: %w", field, errOpen)
	}
	return plain, nil
}

func (s *SealedStore) sealFor(field Field, data []byte) ([]byte, error) {
	if !sealedField(field) {
		return data, nil
	}
	sealed, errSeal := s.sealer.Seal(data)
	if errSeal != nil {
		return nil, fmt.Errorf("sealed store: %s: %w", field, errSeal)
	}
	return sealed, nil
}

func sealedField(field Field) bool {
	return field == FieldKey || field == FieldTOTP
}
