package session

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	hashTime    = 1
	hashMemory  = 64 * 1024
	hashThreads = 4
	hashKeyLen  = 32
)

// HashSecret derives the one-way form of a secret that is sent to the auth
// endpoints. The salt comes from the identity so the same pair always yields
// the same hash and the plain secret never leaves the process.
func HashSecret(identity, secret string) string {
	salt := sha256.Sum256([]byte("rerolab:" + strings.ToLower(strings.TrimSpace(identity))))
	key := argon2.IDKey([]byte(secret), salt[:16], hashTime, hashMemory, hashThreads, hashKeyLen)
	return hex.EncodeToString(key)
}
