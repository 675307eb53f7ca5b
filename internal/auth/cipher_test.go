package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"murmur.dev/internal/auth"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := auth.NewCipher("a-long-enough-passphrase")
	require.NoError(t, err)

	ct, err := c.Encrypt("+20100000000")
	require.NoError(t, err)
	require.NotEqual(t, "+20100000000", ct)

	pt, err := c.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, "+20100000000", pt)
}

func TestCipherNonDeterministic(t *testing.T) {
	c, err := auth.NewCipher("a-long-enough-passphrase")
	require.NoError(t, err)

	a, err := c.Encrypt("same input")
	require.NoError(t, err)
	b, err := c.Encrypt("same input")
	require.NoError(t, err)
	require.NotEqual(t, a, b, "fresh nonce per encryption")
}

func TestCipherRejectsWrongKey(t *testing.T) {
	c1, err := auth.NewCipher("passphrase-one")
	require.NoError(t, err)
	c2, err := auth.NewCipher("passphrase-two")
	require.NoError(t, err)

	ct, err := c1.Encrypt("secret phone")
	require.NoError(t, err)

	_, err = c2.Decrypt(ct)
	require.ErrorIs(t, err, auth.ErrCipher)
}

func TestCipherRejectsGarbage(t *testing.T) {
	c, err := auth.NewCipher("a-long-enough-passphrase")
	require.NoError(t, err)

	for _, in := range []string{"", "not-base64!!!", "aGVsbG8"} {
		_, err = c.Decrypt(in)
		require.ErrorIs(t, err, auth.ErrCipher, "input %q", in)
	}
}

func TestHasherCompare(t *testing.T) {
	h := auth.NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	require.True(t, h.Compare("hunter22", hash))
	require.False(t, h.Compare("hunter23", hash))
	require.False(t, h.Compare("hunter22", "not-a-hash"))
}
