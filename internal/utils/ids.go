package utils

import (
	"strings"

	"github.com/google/uuid"
)

// ValidateID reports whether id is a well-formed record identifier (UUID)
func ValidateID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// NormalizePhone trims surrounding whitespace from a phone number
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName trims and lower-cases a display name
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
