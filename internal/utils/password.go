package utils

import "golang.org/x/crypto/bcrypt"

// DefaultHashCost is the bcrypt cost used unless configured otherwise
const DefaultHashCost = 10

// HashPassword hashes a password with bcrypt
func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPassword compares a bcrypt hash with a candidate password
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
