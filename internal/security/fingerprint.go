package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint returns a hex-encoded SHA-256 digest of the refresh token.
// Sessions store this fingerprint instead of the raw token, so reuse of an
// already-rotated token is detectable without persisting the secret.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// FingerprintEqual compares the fingerprint of the presented token against the
// stored fingerprint in constant time.
func FingerprintEqual(presentedToken, storedFingerprint string) bool {
	presented := Fingerprint(presentedToken)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedFingerprint)) == 1
}
