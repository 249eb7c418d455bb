package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes an account password for storage on the users table.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// ComparePassword checks a login attempt against the stored hash. Returns a
// non-nil error on mismatch; callers must not distinguish it from an unknown
// account.
func ComparePassword(hashed, attempt string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(attempt))
}
