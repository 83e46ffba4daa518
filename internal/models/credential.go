package models

import "time"

// Credential is the database row backing one UID namespace. Nullable columns
// mirror field presence: a provisioned user has only Email set, a registered
// user additionally has Key and TOTPState.
type Credential struct {
	UID string `gorm:"primaryKey;type:text"` // Canonical 32-char identifier.

	Email     *string `gorm:"type:text"`                   // Set once at setup.
	Key       *string `gorm:"type:text"`                   // Set once at registration.
	TOTPState *string `gorm:"type:text;column:totp_state"` // Serialized TOTP state; set once at registration.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
