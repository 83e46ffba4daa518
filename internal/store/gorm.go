package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/keywarden/keywarden/internal/models"
	"github.com/keywarden/keywarden/internal/validate"
)

// GormStore persists credential namespaces as rows via GORM. The exclusive
// write for the TOTP field is a guarded update on a NULL column, which the
// database serializes, so the registration gate stays atomic.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Create allocates a row for a new UID.
func (s *GormStore) Create(ctx context.Context, uid string) error {
	if !validate.UID(uid) {
		return ErrInvalidUID
	}
	errCreate := s.db.WithContext(ctx).Create(&models.Credential{UID: uid}).Error
	if errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return ErrExists
		}
		return fmt.Errorf("gorm store: create namespace: %w", errCreate)
	}
	return nil
}

// Exists reports whether the UID row is present.
func (s *GormStore) Exists(ctx context.Context, uid string) (bool, error) {
	if !validate.UID(uid) {
		return false, ErrInvalidUID
	}
	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("uid = ?", uid).Count(&count).Error
	if errCount != nil {
		return false, fmt.Errorf("gorm store: count namespace: %w", errCount)
	}
	return count > 0, nil
}

// ExistsField reports whether a field column is non-NULL for the UID.
func (s *GormStore) ExistsField(ctx context.Context, uid string, field Field) (bool, error) {
	column, errColumn := columnFor(field)
	if errColumn != nil {
		return false, errColumn
	}
	if !validate.UID(uid) {
		return false, ErrInvalidUID
	}
	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("uid = ?", uid).Where(column+" IS NOT NULL").Count(&count).Error
	if errCount != nil {
		return false, fmt.Errorf("gorm store: count field: %w", errCount)
	}
	return count > 0, nil
}

// Write replaces the field column for the UID.
func (s *GormStore) Write(ctx context.Context, uid string, field Field, data []byte) error {
	column, errColumn := columnFor(field)
	if errColumn != nil {
		return errColumn
	}
	if !validate.UID(uid) {
		return ErrInvalidUID
	}
	result := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("uid = ?", uid).Update(column, string(data))
	if result.Error != nil {
		return fmt.Errorf("gorm store: write %s: %w", field, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// WriteExclusive sets the field column only while it is still NULL.
func (s *GormStore) WriteExclusive(ctx context.Context, uid string, field Field, data []byte) error {
	column, errColumn := columnFor(field)
	if errColumn != nil {
		return errColumn
	}
	if !validate.UID(uid) {
		return ErrInvalidUID
	}
	result := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("uid = ?", uid).Where(column+" IS NULL").Update(column, string(data))
	if result.Error != nil {
		return fmt.Errorf("gorm store: write %s: %w", field, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	exists, errExists := s.Exists(ctx, uid)
	if errExists != nil {
		return errExists
	}
	if !exists {
		return ErrNotFound
	}
	return ErrFieldExists
}

// Read returns the field column content for the UID.
func (s *GormStore) Read(ctx context.Context, uid string, field Field) ([]byte, error) {
	if _, errColumn := columnFor(field); errColumn != nil {
		return nil, errColumn
	}
	if !validate.UID(uid) {
		return nil, ErrInvalidUID
	}
	var row models.Credential
	errFind := s.db.WithContext(ctx).Where("uid = ?", uid).First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gorm store: read %s: %w", field, errFind)
	}
	var value *string
	switch field {
	case FieldEmail:
		value = row.Email
	case FieldKey:
		value = row.Key
	case FieldTOTP:
		value = row.TOTPState
	}
	if value == nil {
		return nil, ErrNotFound
	}
	return []byte(*value), nil
}

func columnFor(field Field) (string, error) {
	switch field {
	case FieldEmail:
		return "email", nil
	case FieldKey:
		return "key", nil
	case FieldTOTP:
		return "totp_state", nil
	default:
		return "", fmt.Errorf("gorm store: unknown field %q", field)
	}
}
