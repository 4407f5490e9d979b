// ABOUTME: Password hashing and verification using bcrypt
// ABOUTME: Timing-safe verification including a dummy path for unknown users

package password

import (
	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently ignores input past 72 bytes in some implementations and
// errors in others. Truncate consistently so long passphrases behave the
// same on hash and verify.
const maxPasswordBytes = 72

// dummyHash is a valid bcrypt digest of an unguessable value. Comparing
// against it keeps the unknown-user path as expensive as a real comparison,
// so response timing does not leak which emails exist.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Hash returns a salted bcrypt digest of the plaintext. Hashing the same
// plaintext twice yields different digests.
func Hash(plaintext string) (string, error) {
	b := []byte(plaintext)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	digest, err := bcrypt.GenerateFromPassword(b, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches the stored digest. A malformed
// digest yields false, never an error.
func Verify(plaintext, digest string) bool {
	b := []byte(plaintext)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), b) == nil
}

// VerifyDummy burns one bcrypt comparison and always returns false. Callers
// invoke it on lookup misses so that missing and present accounts take the
// same time to reject.
func VerifyDummy(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plaintext))
	return false
}
