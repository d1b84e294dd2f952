// Package security implements credential verification, the session
// store and the tumbling-window rate limiter.
package security

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Parameters for newly written hashes. Legacy {SSHA} hashes verify but
// are never produced.
const (
	argonMemory  = 102400
	argonTime    = 2
	argonThreads = 8
	argonKeyLen  = 16
	argonSaltLen = 16
)

// HashPassword returns the argon2id PHC string of a password.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// CheckPassword verifies a password against a stored hash, accepting
// both argon2 PHC strings and legacy {SSHA} values. An empty stored
// hash never matches; directory-backed accounts carry no local hash.
func CheckPassword(password, stored string) bool {
	switch {
	case stored == "":
		return false
	case strings.HasPrefix(stored, "$argon2"):
		return checkArgon2(password, stored)
	case strings.HasPrefix(stored, "{SSHA}"):
		return checkSSHA(password, stored)
	}
	return false
}

func checkArgon2(password, stored string) bool {
	parts := strings.Split(stored, "$")
	// "" / argon2id / v=19 / m=...,t=...,p=... / salt / hash
	if len(parts) != 6 {
		return false
	}
	variant := parts[1]
	if variant != "argon2id" && variant != "argon2i" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	var got []byte
	if variant == "argon2id" {
		got = argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	} else {
		got = argon2.Key([]byte(password), salt, time, memory, threads, uint32(len(want)))
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

// checkSSHA verifies the salted SHA1 format used by LDAP directories:
// base64(sha1(password + salt) + salt).
func checkSSHA(password, stored string) bool {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, "{SSHA}"))
	if err != nil || len(raw) <= sha1.Size {
		return false
	}
	digest, salt := raw[:sha1.Size], raw[sha1.Size:]
	h := sha1.New()
	h.Write([]byte(password))
	h.Write(salt)
	return subtle.ConstantTimeCompare(h.Sum(nil), digest) == 1
}
