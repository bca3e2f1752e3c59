package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signHS(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestValidateHS256(t *testing.T) {
	v, err := NewJWTValidatorHS256(secret)
	require.NoError(t, err)

	tok := signHS(t, jwt.MapClaims{
		"sub":   "bob",
		"name":  "Bob",
		"email": "bob@example.com",
		"role":  "Agent",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	a, err := v.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{ID: "bob", Name: "Bob", Email: "bob@example.com", Role: domain.RoleAgent}, a)
}

func TestValidatePrefersUserID(t *testing.T) {
	v, _ := NewJWTValidatorHS256(secret)
	a, err := v.Validate(signHS(t, jwt.MapClaims{"user_id": "u-1", "sub": "other", "role": "client"}))
	require.NoError(t, err)
	assert.Equal(t, "u-1", a.ID)
}

func TestValidateRejects(t *testing.T) {
	v, _ := NewJWTValidatorHS256(secret)

	tests := map[string]string{
		"expired":      signHS(t, jwt.MapClaims{"sub": "a", "role": "client", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no subject":   signHS(t, jwt.MapClaims{"role": "client"}),
		"no role":      signHS(t, jwt.MapClaims{"sub": "a"}),
		"unknown role": signHS(t, jwt.MapClaims{"sub": "a", "role": "superuser"}),
		"garbage":      "not-a-token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(tok)
			assert.Error(t, err)
		})
	}

	other, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "a", "role": "client"}).SignedString([]byte("wrong"))
	_, err := v.Validate(other)
	assert.Error(t, err)

	_, err = NewJWTValidatorHS256("")
	assert.Error(t, err)
}

func TestValidateRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewJWTValidatorRS256(path)
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "carol", "role": "admin"}).SignedString(key)
	require.NoError(t, err)
	a, err := v.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, a.Role)

	// an HS256 token must not pass an RS256 validator
	_, err = v.Validate(signHS(t, jwt.MapClaims{"sub": "carol", "role": "admin"}))
	assert.Error(t, err)

	_, err = NewJWTValidatorRS256(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}
