package encryption

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-api/internal/config"
)

func localManager() *Manager {
	return NewManager(&config.Config{}, nil)
}

func TestEncryptDecryptField_RoundTrip(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	data, err := m.EncryptField(ctx, "listener@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, data.EncryptedValue)
	assert.NotEmpty(t, data.EncryptedDEK)
	assert.Equal(t, "v1", data.Version)

	plain, err := m.DecryptField(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "listener@example.com", plain)
}

func TestDecryptField_WithoutKeyCache(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	data, err := m.EncryptField(ctx, "listener@example.com")
	require.NoError(t, err)

	// A fresh manager has no cached DEK and must unwrap the stored one.
	fresh := localManager()
	plain, err := fresh.DecryptField(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "listener@example.com", plain)
}

func TestEncryptToString_RoundTrip(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	stored, err := m.EncryptToString(ctx, "listener@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "listener@example.com", stored)
	assert.Contains(t, stored, "encrypted_value")

	plain, err := m.DecryptFromString(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, "listener@example.com", plain)
}

func TestEncryptToString_EmptyValueStaysEmpty(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	stored, err := m.EncryptToString(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, stored)

	plain, err := m.DecryptFromString(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestDecryptFromString_RejectsGarbage(t *testing.T) {
	m := localManager()

	_, err := m.DecryptFromString(context.Background(), "not-json")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptField_UniqueCiphertexts(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	a, err := m.EncryptField(ctx, "same value")
	require.NoError(t, err)
	b, err := m.EncryptField(ctx, "same value")
	require.NoError(t, err)

	// Fresh DEK and nonce per call.
	assert.NotEqual(t, a.EncryptedValue, b.EncryptedValue)
}
