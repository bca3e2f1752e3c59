package auth

import (
	"crypto/rsa"
	"errors"
	"os"
	"strings"

	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// JWTValidator verifies bearer tokens issued by the identity provider and
// turns their claims into an Actor.
type JWTValidator struct {
	alg    string
	pub    *rsa.PublicKey
	secret []byte
}

func NewJWTValidatorRS256(path string) (*JWTValidator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &JWTValidator{alg: "RS256", pub: pub}, nil
}

func NewJWTValidatorHS256(secret string) (*JWTValidator, error) {
	if secret == "" {
		return nil, errors.New("empty hs256 secret")
	}
	return &JWTValidator{alg: "HS256", secret: []byte(secret)}, nil
}

func (j *JWTValidator) keyFunc(t *jwt.Token) (interface{}, error) {
	if j.alg == "RS256" {
		return j.pub, nil
	}
	return j.secret, nil
}

func (j *JWTValidator) Validate(tokenStr string) (domain.Actor, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, j.keyFunc, jwt.WithValidMethods([]string{j.alg}))
	if err != nil {
		return domain.Actor{}, err
	}
	if !tok.Valid {
		return domain.Actor{}, ErrInvalidToken
	}

	// prefer "user_id" then "sub"
	var a domain.Actor
	if v, ok := claims["user_id"].(string); ok && v != "" {
		a.ID = v
	} else if v, ok := claims["sub"].(string); ok && v != "" {
		a.ID = v
	} else {
		return domain.Actor{}, errors.New("missing user id in token")
	}
	a.Name, _ = claims["name"].(string)
	a.Email, _ = claims["email"].(string)
	role, _ := claims["role"].(string)
	a.Role = domain.Role(strings.ToLower(role))
	if !a.Role.Valid() {
		return domain.Actor{}, errors.New("missing or unknown role in token")
	}
	return a, nil
}
