package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsPrivateOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		allowed bool
	}{
		// Allowed: localhost
		{"http://localhost", true},
		{"http://localhost:8081", true},
		{"https://localhost:3000", true},

		// Allowed: private IPs
		{"http://192.168.1.1", true},
		{"http://192.168.1.1:7777", true},
		{"http://10.0.0.1", true},
		{"http://10.0.0.1:8080", true},
		{"http://172.16.0.1", true},
		{"http://172.31.255.255:443", true},
		{"http://127.0.0.1", true},
		{"http://127.0.0.1:3000", true},

		// Allowed: link-local
		{"http://169.254.1.1", true},

		// Allowed: .local hostnames
		{"http://cinema.local", true},
		{"http://cinema.local:5173", true},

		// Allowed: single-label hostnames (LAN)
		{"http://moviebox:5173", true},

		// Blocked: public domains
		{"http://example.com", false},
		{"https://evil.com", false},
		{"https://google.com", false},
		{"http://image.tmdb.org.evil.com", false},

		// Blocked: public IPs
		{"http://8.8.8.8", false},
		{"http://1.1.1.1", false},

		// Blocked: empty/invalid
		{"", false},
		{"not-a-url", false},
	}

	for _, tt := range tests {
		got := IsPrivateOrigin(tt.origin)
		if got != tt.allowed {
			t.Errorf("IsPrivateOrigin(%q) = %v, want %v", tt.origin, got, tt.allowed)
		}
	}
}

func TestCORSPolicyAllowOrigin(t *testing.T) {
	tests := []struct {
		name    string
		policy  CORSPolicy
		origin  string
		want    string
		applies bool
	}{
		{"empty policy is permissive", CORSPolicy{}, "https://app.example.com", "*", true},
		{"wildcard without origin", CORSPolicy{Origins: []string{"*"}}, "", "*", true},
		{"exact match echoes origin", CORSPolicy{Origins: []string{"https://app.example.com/"}}, "https://app.example.com", "https://app.example.com", true},
		{"unlisted origin", CORSPolicy{Origins: []string{"https://app.example.com"}}, "https://evil.com", "", false},
		{"private keyword", CORSPolicy{Origins: []string{"private"}}, "http://192.168.1.20:5173", "http://192.168.1.20:5173", true},
		{"private keyword blocks public", CORSPolicy{Origins: []string{"private"}}, "https://evil.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.policy.AllowOrigin(tt.origin)
			if got != tt.want || ok != tt.applies {
				t.Fatalf("AllowOrigin(%q) = %q, %v; want %q, %v", tt.origin, got, ok, tt.want, tt.applies)
			}
		})
	}
}

func TestRouterPreflightAndHealth(t *testing.T) {
	r := NewRouter(CORSPolicy{})

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected preflight 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Fatalf("unexpected allow headers %q", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != `{"status":"ok"}` {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}
