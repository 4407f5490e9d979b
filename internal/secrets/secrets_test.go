// ABOUTME: Tests for secret material construction and generation
// ABOUTME: Covers length validation and encryption key derivation

package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Valid(t *testing.T) {
	signing := strings.Repeat("s", 32)
	encryption := strings.Repeat("e", 40)

	s, err := New(signing, encryption)
	require.NoError(t, err)
	assert.Equal(t, []byte(signing), s.Signing)
	assert.Len(t, s.Encryption, 32)
}

func TestNew_SigningTooShort(t *testing.T) {
	_, err := New("short", strings.Repeat("e", 32))
	require.ErrorIs(t, err, ErrSecretTooShort)
}

func TestNew_EncryptionTooShort(t *testing.T) {
	_, err := New(strings.Repeat("s", 32), "short")
	require.ErrorIs(t, err, ErrSecretTooShort)
}

func TestNew_EncryptionKeyIsDeterministic(t *testing.T) {
	signing := strings.Repeat("s", 32)
	encryption := strings.Repeat("e", 32)

	s1, err := New(signing, encryption)
	require.NoError(t, err)
	s2, err := New(signing, encryption)
	require.NoError(t, err)

	assert.Equal(t, s1.Encryption, s2.Encryption)

	s3, err := New(signing, strings.Repeat("x", 32))
	require.NoError(t, err)
	assert.NotEqual(t, s1.Encryption, s3.Encryption)
}

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), MinSecretLength)
}
