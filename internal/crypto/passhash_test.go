package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashVerify_OK(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	require.Len(t, salt, SaltLen)

	h := HashPassword([]byte("correct horse"), salt)
	require.True(t, VerifyPassword([]byte("correct horse"), salt, h))
	require.False(t, VerifyPassword([]byte("wrong"), salt, h))
}

func TestHash_DependsOnSalt(t *testing.T) {
	s1, err := NewSalt()
	require.NoError(t, err)
	s2, err := NewSalt()
	require.NoError(t, err)
	require.NotEqual(t, s1, s2)

	require.NotEqual(t, HashPassword([]byte("pw"), s1), HashPassword([]byte("pw"), s2))
}
