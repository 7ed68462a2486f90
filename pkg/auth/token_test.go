package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "vendorledger", ExpirationMinutes: 30}
}

func testKeys(t *testing.T) *Keys {
	t.Helper()
	keys, err := NewKeys(testJWTConfig())
	if err != nil {
		t.Fatalf("NewKeys: %v", err)
	}
	return keys
}

func TestVendorTokenRoundTrip(t *testing.T) {
	keys := testKeys(t)
	actorID, vendorID := uuid.New(), uuid.New()

	token, err := keys.Mint(time.Now().UTC(), AccessTokenPayload{ActorID: actorID, VendorID: &vendorID, Role: enums.ActorRoleVendor})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	claims, err := keys.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := claims.Payload()
	if got.ActorID != actorID || got.VendorID == nil || *got.VendorID != vendorID || got.Role != enums.ActorRoleVendor {
		t.Fatalf("payload not preserved: %+v", got)
	}
	if got.JTI == "" || claims.Subject != actorID.String() {
		t.Fatalf("registered claims missing: jti=%q sub=%q", got.JTI, claims.Subject)
	}
}

func TestNewKeysValidatesConfig(t *testing.T) {
	for name, mutate := range map[string]func(*config.JWTConfig){
		"secret": func(c *config.JWTConfig) { c.Secret = "" },
		"issuer": func(c *config.JWTConfig) { c.Issuer = "" },
		"ttl":    func(c *config.JWTConfig) { c.ExpirationMinutes = 0 },
	} {
		cfg := testJWTConfig()
		mutate(&cfg)
		if _, err := NewKeys(cfg); err == nil {
			t.Fatalf("missing %s accepted", name)
		}
	}
}

func TestMintRejectsBadPayload(t *testing.T) {
	keys := testKeys(t)
	for name, payload := range map[string]AccessTokenPayload{
		"no actor":            {Role: enums.ActorRoleAdmin},
		"unknown role":        {ActorID: uuid.New(), Role: enums.ActorRole("owner")},
		"vendor without shop": {ActorID: uuid.New(), Role: enums.ActorRoleVendor},
	} {
		if _, err := keys.Mint(time.Now(), payload); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseRejects(t *testing.T) {
	keys := testKeys(t)
	admin := AccessTokenPayload{ActorID: uuid.New(), Role: enums.ActorRoleAdmin}

	expired, err := keys.Mint(time.Now().Add(-2*time.Hour), admin)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	valid, err := keys.Mint(time.Now(), admin)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{
		ActorID:          admin.ActorID,
		Role:             admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "vendorledger", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	otherIssuer := testJWTConfig()
	otherIssuer.Issuer = "someone-else"
	otherSecret := testJWTConfig()
	otherSecret.Secret = "different"

	cases := map[string]struct {
		cfg   config.JWTConfig
		token string
	}{
		"expired":      {testJWTConfig(), expired},
		"wrong issuer": {otherIssuer, valid},
		"wrong secret": {otherSecret, valid},
		"alg none":     {testJWTConfig(), unsigned},
		"garbage":      {testJWTConfig(), "not.a.jwt"},
	}
	for name, tc := range cases {
		if _, err := ParseAccessToken(tc.cfg, tc.token); err == nil {
			t.Fatalf("%s: expected parse failure", name)
		}
	}
}

func TestParseToleratesSmallClockSkew(t *testing.T) {
	keys := testKeys(t)
	// expired 10s ago from the verifier's point of view
	token, err := keys.Mint(time.Now().Add(-30*time.Minute-10*time.Second), AccessTokenPayload{ActorID: uuid.New(), Role: enums.ActorRoleSystem})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := keys.Parse(token); err != nil {
		t.Fatalf("expected skew tolerance, got %v", err)
	}
}
