package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

// clockSkew tolerates small drift between the identity service and this one.
const clockSkew = 30 * time.Second

// Keys signs and verifies HS256 access tokens for one issuer.
type Keys struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewKeys(cfg config.JWTConfig) (*Keys, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	return &Keys{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
	}, nil
}

// Mint signs payload with a lifetime starting at now. A blank JTI gets a
// random one.
func (k *Keys) Mint(now time.Time, payload AccessTokenPayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		ActorID:  payload.ActorID,
		VendorID: payload.VendorID,
		Role:     payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    k.issuer,
			Subject:   payload.ActorID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(k.ttl)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry, then re-checks the actor shape.
func (k *Keys) Parse(raw string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return k.secret, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(k.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, err
	}
	if err := claims.Payload().Validate(); err != nil {
		return nil, err
	}
	return claims, nil
}

// MintAccessToken is a one-shot NewKeys(cfg).Mint for tooling and tests.
// Tokens are normally minted by the identity service.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	keys, err := NewKeys(cfg)
	if err != nil {
		return "", err
	}
	return keys.Mint(now, payload)
}

func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	keys, err := NewKeys(cfg)
	if err != nil {
		return nil, err
	}
	return keys.Parse(raw)
}
