package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"murmur.dev/internal/account"
	"murmur.dev/internal/auth"
)

func testAccount(role account.Role) *account.Account {
	return &account.Account{
		ID:    "01J0TESTACCOUNT0000000000",
		Email: "dana@example.com",
		Role:  role,
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	codec, err := auth.NewCodec(testSecrets(), "murmur")
	require.NoError(t, err)

	jti := auth.NewJTI()
	token, err := codec.Sign(testAccount(account.RoleUser), auth.AccessToken, jti)
	require.NoError(t, err)

	claims, err := codec.Verify(token, account.RoleUser, auth.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "dana@example.com", claims.Email)
	require.Equal(t, account.RoleUser, claims.Role)
	require.Equal(t, auth.AccessToken, claims.Kind)
	require.Equal(t, "01J0TESTACCOUNT0000000000", claims.Subject)
	require.Equal(t, jti, claims.ID)
}

func TestVerifyRejectsCrossRoleSecrets(t *testing.T) {
	codec, err := auth.NewCodec(testSecrets(), "murmur")
	require.NoError(t, err)

	userToken, err := codec.Sign(testAccount(account.RoleUser), auth.AccessToken, auth.NewJTI())
	require.NoError(t, err)
	adminToken, err := codec.Sign(testAccount(account.RoleAdmin), auth.AccessToken, auth.NewJTI())
	require.NoError(t, err)

	// A user token never verifies under the admin secret and vice versa,
	// whatever the payload says.
	_, err = codec.Verify(userToken, account.RoleAdmin, auth.AccessToken)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
	_, err = codec.Verify(adminToken, account.RoleUser, auth.AccessToken)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestVerifyRejectsKindMismatch(t *testing.T) {
	codec, err := auth.NewCodec(testSecrets(), "murmur")
	require.NoError(t, err)

	refresh, err := codec.Sign(testAccount(account.RoleUser), auth.RefreshToken, auth.NewJTI())
	require.NoError(t, err)

	_, err = codec.Verify(refresh, account.RoleUser, auth.AccessToken)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestVerifyExpiredToken(t *testing.T) {
	now := time.Now()
	codec, err := auth.NewCodec(testSecrets(), "murmur",
		auth.WithAccessTTL(time.Hour),
		auth.WithCodecClock(func() time.Time { return now }))
	require.NoError(t, err)

	token, err := codec.Sign(testAccount(account.RoleUser), auth.AccessToken, auth.NewJTI())
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = codec.Verify(token, account.RoleUser, auth.AccessToken)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestVerifyUsesCodecClock(t *testing.T) {
	// A token minted ahead of wall-clock time carries a future iat; the
	// codec must judge it against its own clock, not the system one.
	ahead := time.Now().Add(time.Hour)
	codec, err := auth.NewCodec(testSecrets(), "murmur",
		auth.WithCodecClock(func() time.Time { return ahead }))
	require.NoError(t, err)

	token, err := codec.Sign(testAccount(account.RoleUser), auth.AccessToken, auth.NewJTI())
	require.NoError(t, err)

	claims, err := codec.Verify(token, account.RoleUser, auth.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "dana@example.com", claims.Email)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	codec, err := auth.NewCodec(testSecrets(), "murmur")
	require.NoError(t, err)

	token, err := codec.Sign(testAccount(account.RoleUser), auth.AccessToken, auth.NewJTI())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = codec.Verify(tampered, account.RoleUser, auth.AccessToken)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec, err := auth.NewCodec(testSecrets(), "murmur")
	require.NoError(t, err)

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		_, err = codec.Verify(tok, account.RoleUser, auth.AccessToken)
		require.ErrorIs(t, err, auth.ErrTokenInvalid, "token %q", tok)
	}
}

func TestPeekClaims(t *testing.T) {
	codec, err := auth.NewCodec(testSecrets(), "murmur")
	require.NoError(t, err)

	token, err := codec.Sign(testAccount(account.RoleAdmin), auth.AccessToken, auth.NewJTI())
	require.NoError(t, err)

	peeked, err := codec.PeekClaims(token)
	require.NoError(t, err)
	require.Equal(t, account.RoleAdmin, peeked.Role)

	_, err = codec.PeekClaims("garbage")
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestNewCodecRequiresAllSecrets(t *testing.T) {
	partial := testSecrets()
	partial.AdminRefresh = ""
	_, err := auth.NewCodec(partial, "murmur")
	require.Error(t, err)
}
