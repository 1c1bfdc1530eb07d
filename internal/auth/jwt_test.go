package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fruitsalade/explorer/internal/logging"
)

func init() {
	logging.InitNop()
}

func protected(t *testing.T, a *Auth) http.Handler {
	t.Helper()
	return a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := GetClaims(r.Context()); claims != nil {
			w.Header().Set("X-Subject", claims.Subject)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestDisabledAuthPassesThrough(t *testing.T) {
	a := New("")
	if a.Enabled() {
		t.Fatal("Enabled() with empty secret")
	}
	rec := httptest.NewRecorder()
	protected(t, a).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cwd", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if _, err := a.IssueToken("owner", time.Hour); err == nil {
		t.Error("IssueToken without secret succeeded")
	}
}

func TestMiddlewareChecksToken(t *testing.T) {
	a := New("test-secret")
	token, err := a.IssueToken("owner", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	expired, _ := a.IssueToken("owner", -time.Minute)
	foreign, _ := New("other-secret").IssueToken("owner", time.Hour)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "owner", "iss": issuer})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer", "Bearer " + token, "", http.StatusNoContent},
		{"query", "", token, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, "", http.StatusUnauthorized},
		{"alg none", "Bearer " + unsigned, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		url := "/api/v1/cwd"
		if tt.query != "" {
			url += "?token=" + tt.query
		}
		req := httptest.NewRequest(http.MethodGet, url, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		protected(t, a).ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
		if tt.want == http.StatusNoContent && rec.Header().Get("X-Subject") != "owner" {
			t.Errorf("%s: claims not in context", tt.name)
		}
	}
}
