package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipher_RoundTrips(t *testing.T) {
	t.Parallel()

	c, err := newTokenCipher("a-process-wide-secret")
	require.NoError(t, err)

	ciphertext, err := c.encrypt("refresh-token-value")
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "refresh-token-value")

	plaintext, err := c.decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token-value", plaintext)
}

func TestTokenCipher_RejectsTruncatedCiphertext(t *testing.T) {
	t.Parallel()

	c, err := newTokenCipher("another-secret")
	require.NoError(t, err)

	_, err = c.decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestPKCEChallenge_IsDeterministic(t *testing.T) {
	t.Parallel()

	verifier, err := generatePKCEVerifier()
	require.NoError(t, err)
	assert.NotEmpty(t, verifier)

	assert.Equal(t, pkceChallenge(verifier), pkceChallenge(verifier))
}

func TestPKCEVerifier_IsUnpredictable(t *testing.T) {
	t.Parallel()

	a, err := generatePKCEVerifier()
	require.NoError(t, err)

	b, err := generatePKCEVerifier()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
