package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for new hashes.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16

	phcPrefix = "$argon2id$"
)

// phcHash is a decoded Argon2id PHC string.
type phcHash struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

// HashPassword returns an Argon2id PHC string for password, suitable for
// api.auth.password.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix, argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// CheckPassword compares a login attempt with the configured password,
// which is either an Argon2id PHC string or plain text.
func CheckPassword(configured, attempt string) error {
	if configured == "" {
		return ErrInvalidCredentials
	}

	if !strings.HasPrefix(configured, phcPrefix) {
		if subtle.ConstantTimeCompare([]byte(configured), []byte(attempt)) != 1 {
			return ErrInvalidCredentials
		}
		return nil
	}

	h, err := parsePHC(configured)
	if err != nil {
		return fmt.Errorf("configured password hash: %w", err)
	}
	candidate := argon2.IDKey([]byte(attempt), h.salt, h.time, h.memory, h.threads, uint32(len(h.key))) //nolint:gosec // key length fits uint32
	if subtle.ConstantTimeCompare(h.key, candidate) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

func parsePHC(encoded string) (phcHash, error) {
	var h phcHash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" { //nolint:mnd // "", alg, version, params, salt, key
		return h, fmt.Errorf("not an argon2id PHC string")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return h, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return h, fmt.Errorf("unsupported argon2 version %d", version)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return h, fmt.Errorf("parsing parameters: %w", err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return h, fmt.Errorf("decoding salt: %w", err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return h, fmt.Errorf("decoding key: %w", err)
	}
	if len(h.key) == 0 {
		return h, fmt.Errorf("empty key")
	}

	return h, nil
}
