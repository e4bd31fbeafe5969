package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	token, err := GenerateToken("user-1", "secret")
	require.NoError(t, err)

	userID, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := GenerateToken("user-1", "secret")
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	require.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := ValidateToken("not-a-token", "secret")
	require.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)

	require.True(t, CheckPasswordHash("hunter22", hash))
	require.False(t, CheckPasswordHash("hunter23", hash))
}
