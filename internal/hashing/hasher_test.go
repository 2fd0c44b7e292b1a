package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_EncodeVerifyRoundTrip(t *testing.T) {
	h := NewHasher()
	salt := []byte("0123456789abcdef")

	encoded := h.Encode("operations-token", salt)
	assert.Contains(t, encoded, "$argon2id$")

	ok, err := h.Verify("operations-token", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_VerifyRejectsWrongSecret(t *testing.T) {
	h := NewHasher()
	encoded := h.Encode("correct-token", []byte("0123456789abcdef"))

	ok, err := h.Verify("wrong-token", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_VerifyRejectsMalformedDigest(t *testing.T) {
	h := NewHasher()

	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"not a digest", "plaintext-token"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		{"missing sections", "$argon2id$v=19$m=65536,t=3,p=2"},
		{"bad base64 salt", "$argon2id$v=19$m=65536,t=3,p=2$!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("secret", tt.encoded)
			assert.Error(t, err)
			assert.False(t, ok)
		})
	}
}
