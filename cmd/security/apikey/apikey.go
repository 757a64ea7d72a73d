package apikey

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	keyPrefix   = "fg_"
	secretBytes = 32

	argon2Version = 19 // argon2.Version is 0x13 (19)
)

// Params controls argon2id hashing cost. Secrets are high-entropy random
// strings, so the parameters sit below interactive-password cost while
// still making leaked hash tables useless.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns the baseline hashing cost.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   19 * 1024,
		Iterations:  2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Generate creates a new API key for an organization and returns the
// plaintext key plus its encoded hash. The plaintext is never stored.
func Generate(orgID string, params Params) (plaintext, encodedHash string, err error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" || strings.ContainsAny(orgID, "._") {
		return "", "", ErrMalformedKey
	}

	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := hashSecret(secret, params)
	if err != nil {
		return "", "", err
	}
	return keyPrefix + orgID + "." + secret, hash, nil
}

// Split extracts the org ID and secret from a presented key.
func Split(key string) (orgID, secret string, err error) {
	if !strings.HasPrefix(key, keyPrefix) {
		return "", "", ErrMalformedKey
	}
	rest := strings.TrimPrefix(key, keyPrefix)
	orgID, secret, ok := strings.Cut(rest, ".")
	if !ok || orgID == "" || secret == "" {
		return "", "", ErrMalformedKey
	}
	return orgID, secret, nil
}

// Verify checks a presented key's secret against the stored encoded hash.
// Returns (true, nil) for a match, (false, nil) for mismatch, and
// (false, ErrInvalidHash) for malformed hashes.
func Verify(encodedHash, secret string) (bool, error) {
	params, salt, expected, err := decode(encodedHash)
	if err != nil {
		return false, err
	}

	// Refuse attacker-controlled hash strings with pathological cost.
	if !withinReasonableBounds(params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey(
		[]byte(secret),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- expected length is bounded by decode(); safe conversion.
	)
	if subtle.ConstantTimeCompare(key, expected) == 1 {
		return true, nil
	}
	return false, nil
}

func hashSecret(secret string, p Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		p.MemoryKiB,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

func withinReasonableBounds(p Params) bool {
	limits := DefaultParams()
	if p.MemoryKiB > limits.MemoryKiB*4 {
		return false
	}
	if p.Iterations > limits.Iterations*4 {
		return false
	}
	if p.Parallelism > limits.Parallelism*4 {
		return false
	}
	if p.SaltLength < 8 || p.SaltLength > 64 {
		return false
	}
	if p.KeyLength < 16 || p.KeyLength > 128 {
		return false
	}
	return true
}

// decode parses the encoded hash and returns params, salt and expected key.
func decode(encoded string) (Params, []byte, []byte, error) {
	// Expected: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v=19" {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	hash, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	params := Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par), // #nosec G115 -- bounded above; safe conversion.
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(hash)),
	}
	return params, salt, hash, nil
}
