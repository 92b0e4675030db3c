package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims CustomClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestValidateToken_ValidSignedToken(t *testing.T) {
	v := NewVerifier("super-secret-signing-key-value", "watchparty")
	claims := CustomClaims{
		Name: "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice-sub",
			Audience:  jwt.ClaimStrings{"watchparty"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := signToken(t, "super-secret-signing-key-value", claims)

	id, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice-sub", string(id.Sub))
	assert.Equal(t, "Alice", string(id.Name))
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	v := NewVerifier("super-secret-signing-key-value", "watchparty")
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice-sub",
			Audience:  jwt.ClaimStrings{"watchparty"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token := signToken(t, "super-secret-signing-key-value", claims)

	_, err := v.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	v := NewVerifier("super-secret-signing-key-value", "watchparty")
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "alice-sub",
			Audience: jwt.ClaimStrings{"watchparty"},
		},
	}
	token := signToken(t, "a-totally-different-secret", claims)

	_, err := v.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongAudience(t *testing.T) {
	v := NewVerifier("super-secret-signing-key-value", "watchparty")
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "alice-sub",
			Audience: jwt.ClaimStrings{"someone-else"},
		},
	}
	token := signToken(t, "super-secret-signing-key-value", claims)

	_, err := v.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Malformed(t *testing.T) {
	v := NewVerifier("super-secret-signing-key-value", "watchparty")
	_, err := v.ValidateToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Empty(t *testing.T) {
	v := NewVerifier("super-secret-signing-key-value", "watchparty")
	_, err := v.ValidateToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_DevMode_EmptyAudience(t *testing.T) {
	v := NewVerifier("whatever", "")
	claims := CustomClaims{
		Name: "Dev User",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "dev-sub",
		},
	}
	token := signToken(t, "anything-at-all", claims)

	id, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "dev-sub", string(id.Sub))
	assert.Equal(t, "Dev User", string(id.Name))
}

func TestValidateToken_DevMode_NameFallsBackToEmailPrefix(t *testing.T) {
	v := NewVerifier("whatever", "")
	claims := CustomClaims{
		Email: "bob@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "bob-sub",
		},
	}
	token := signToken(t, "anything-at-all", claims)

	id, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "bob", string(id.Name))
}

func TestValidateToken_DevMode_MissingSubject(t *testing.T) {
	v := NewVerifier("whatever", "")
	claims := CustomClaims{Name: "No Subject"}
	token := signToken(t, "anything-at-all", claims)

	_, err := v.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
