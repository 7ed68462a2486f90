package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/vendorledger/pkg/config"
)

func preflight(t *testing.T, app config.AppConfig, origin string) *httptest.ResponseRecorder {
	t.Helper()
	handler := CORS(app)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/vendor/settlements", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCORSPolicy(t *testing.T) {
	prod := config.AppConfig{Env: "prod", CORSOrigins: []string{"https://*.vendorledger.app"}}
	dev := config.AppConfig{Env: "dev"}

	cases := []struct {
		name    string
		app     config.AppConfig
		origin  string
		allowed bool
	}{
		{"wildcard subdomain", prod, "https://admin.vendorledger.app", true},
		{"foreign origin", prod, "https://evil.example.com", false},
		{"localhost outside dev", prod, "http://localhost:3000", false},
		{"localhost in dev", dev, "http://localhost:3000", true},
		{"no origins outside dev", config.AppConfig{Env: "prod"}, "https://admin.vendorledger.app", false},
	}
	for _, tc := range cases {
		got := preflight(t, tc.app, tc.origin).Header().Get("Access-Control-Allow-Origin")
		if tc.allowed && got != tc.origin {
			t.Fatalf("%s: expected origin echoed, got %q", tc.name, got)
		}
		if !tc.allowed && got != "" {
			t.Fatalf("%s: expected no allow-origin header, got %q", tc.name, got)
		}
	}
}

func TestCORSDevDoesNotMutateConfiguredOrigins(t *testing.T) {
	origins := make([]string, 1, 4)
	origins[0] = "https://admin.vendorledger.app"
	CORS(config.AppConfig{Env: "dev", CORSOrigins: origins})
	if got := origins[:cap(origins)][1]; got != "" {
		t.Fatalf("configured slice was written through: %q", got)
	}
}
