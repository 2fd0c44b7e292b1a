package hashing

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidDigest = errors.New("invalid digest format")

// Params are the argon2id cost settings baked into issued digests.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher verifies the admin bearer token against its stored argon2id digest.
// The encoded form is $argon2id$v=19$m=...,t=...,p=...$salt$hash with
// raw-url-base64 salt and hash.
type Hasher struct {
	params Params
}

func NewHasher() *Hasher {
	return &Hasher{params: DefaultParams()}
}

// Encode produces the stored digest form for a secret. Used by deployment
// tooling to mint ADMIN_TOKEN_DIGEST values.
func (h *Hasher) Encode(secret string, salt []byte) string {
	key := argon2.IDKey([]byte(secret), salt,
		h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(key))
}

// Verify compares secret against an encoded digest in constant time.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrInvalidDigest
	}
	if version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported argon2 version %d", ErrInvalidDigest, version)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, ErrInvalidDigest
	}

	salt, err := base64.RawURLEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidDigest
	}
	expected, err := base64.RawURLEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrInvalidDigest
	}

	computed := argon2.IDKey([]byte(secret), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
