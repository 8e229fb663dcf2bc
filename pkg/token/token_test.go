package token

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContactBook/config"
	"ContactBook/pkg/errors"
)

func TestGenerateAccessTokenBeforeInit(t *testing.T) {
	saved := sharedGenerator
	sharedGenerator = nil
	t.Cleanup(func() { sharedGenerator = saved })

	_, _, err := GenerateAccessToken("u1")
	assert.ErrorIs(t, err, errors.ErrTokenGeneratorNotInitialized)
}

func TestGenerateAccessToken(t *testing.T) {
	config.Cfg.JWTSecret = "token-test-secret"
	config.Cfg.JWTExpireMinutes = 10
	require.NoError(t, Init())
	require.NotNil(t, GetGenerator())

	signed, expiresAt, err := GenerateAccessToken("11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	claims := jwtv5.MapClaims{}
	parsed, err := jwtv5.ParseWithClaims(signed, claims, func(*jwtv5.Token) (interface{}, error) {
		return []byte("token-test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", claims[IdentityKey])
	assert.Equal(t, float64(expiresAt.Unix()), claims["exp"])

	_, err = jwtv5.ParseWithClaims(signed, jwtv5.MapClaims{}, func(*jwtv5.Token) (interface{}, error) {
		return []byte("other-secret"), nil
	})
	assert.Error(t, err)
}
