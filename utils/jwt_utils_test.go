package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trello-project/microservices/tasks-service/models"
)

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := NewTokenVerifier("test-secret")

	token, err := v.GenerateToken("u1", models.RoleAdmin)
	require.NoError(t, err)

	p, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.Principal{UserID: "u1", Role: models.RoleAdmin}, p)
}

func TestTokenVerifier_WrongSecret(t *testing.T) {
	token, err := NewTokenVerifier("one").GenerateToken("u1", models.RoleMember)
	require.NoError(t, err)

	_, err = NewTokenVerifier("two").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenVerifier_Expired(t *testing.T) {
	v := NewTokenVerifier("test-secret")
	v.ttl = -time.Minute

	token, err := v.GenerateToken("u1", models.RoleMember)
	require.NoError(t, err)

	_, err = v.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenVerifier_MissingRoleDefaultsToMember(t *testing.T) {
	claims := &Claims{
		UserID:           "u2",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	p, err := NewTokenVerifier("s").ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, p.Role)
}

func TestTokenVerifier_Garbage(t *testing.T) {
	_, err := NewTokenVerifier("s").ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
