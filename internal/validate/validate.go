// Package validate holds the pure input-format predicates shared by the
// services and the storage layer. Every predicate runs before any storage
// access or path construction.
package validate

import "strings"

// uidLength is the length of a UID once dashes are removed (UUIDv4 hex).
const uidLength = 32

// maxKeyLength bounds the encoded key payload: 96 ciphertext bytes plus
// 32 bytes of nonce/tag plus one framing byte.
const maxKeyLength = 129

// NormalizeUID returns the canonical storage form of a UID: dashes removed,
// lowercased. Callers must check UID first.
func NormalizeUID(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "-", ""))
}

// UID reports whether s is a well-formed user identifier: exactly 32 word
// characters after removing dashes.
func UID(s string) bool {
	stripped := strings.ReplaceAll(s, "-", "")
	if len(stripped) != uidLength {
		return false
	}
	for i := 0; i < len(stripped); i++ {
		if !isWordChar(stripped[i]) {
			return false
		}
	}
	return true
}

// Key reports whether s is a well-formed key: 1..129 characters, each
// alphanumeric or a colon.
func Key(s string) bool {
	if len(s) < 1 || len(s) > maxKeyLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isWordChar(c) && c != ':' {
			return false
		}
	}
	return true
}

// Code reports whether s looks like a TOTP code: 6 to 8 digits.
func Code(s string) bool {
	if len(s) < 6 || len(s) > 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isWordChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c == '_':
		return true
	}
	return false
}
