package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// DeriveSigningCredential computes the per-session "i" credential: the
// lowercase hex SHA-256 digest of rawUserToken followed by appSecret. The
// operand order is fixed by the remote service.
func DeriveSigningCredential(appSecret string, rawUserToken string) string {
	sum := sha256.Sum256([]byte(rawUserToken + appSecret))
	return hex.EncodeToString(sum[:])
}
