package security

import "golang.org/x/crypto/bcrypt"

// bcrypt silently ignores input beyond 72 bytes, and newer versions reject it
// outright. Truncate the encoded bytes up front so hashing and verification
// always agree on what was hashed, even when byte 72 falls inside a
// multi-byte rune.
const maxPasswordBytes = 72

func truncatePassword(plain string) []byte {
	b := []byte(plain)

	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}

	return b
}

// HashPassword hashes a plain text password with bcrypt. Each call salts
// freshly, so equal inputs produce different digests.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncatePassword(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password, applying
// the same truncation as HashPassword.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncatePassword(plain))
}
