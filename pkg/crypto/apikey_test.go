package crypto

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAPIKeyShape(t *testing.T) {
	secret, err := GenerateAPIKey()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(secret, KeyPrefix))
	require.Len(t, secret, len(KeyPrefix)+64)

	other, err := GenerateAPIKey()
	require.NoError(t, err)
	require.NotEqual(t, secret, other)
}

func TestGenerateAPIKeyRandomFailure(t *testing.T) {
	orig := randomRead
	defer func() { randomRead = orig }()
	randomRead = func([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

	_, err := GenerateAPIKey()
	require.Error(t, err)
}

func TestHasKeyPrefix(t *testing.T) {
	require.True(t, HasKeyPrefix("wd_live_abc"))
	require.False(t, HasKeyPrefix("sk_live_abc"))
	require.False(t, HasKeyPrefix(""))
}

func TestKeyFragment(t *testing.T) {
	require.Equal(t, "deadbeef", KeyFragment("wd_live_deadbeefcafe"))
	require.Equal(t, "abc", KeyFragment("wd_live_abc"))
}

func TestHashAndCheckAPIKey(t *testing.T) {
	secret, err := GenerateAPIKey()
	require.NoError(t, err)

	hash, err := HashAPIKey(secret, bcrypt.MinCost)
	require.NoError(t, err)
	require.NotContains(t, hash, secret)

	require.True(t, CheckAPIKey(secret, hash))
	require.False(t, CheckAPIKey(secret+"x", hash))
	require.False(t, CheckAPIKey(secret, "not-a-hash"))
}

func TestHashAPIKeyRejectsTinyCost(t *testing.T) {
	hash, err := HashAPIKey("wd_live_short", 0)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, DefaultCost, cost)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.True(t, CheckPassword("hunter2", hash))
	require.False(t, CheckPassword("hunter3", hash))
}
