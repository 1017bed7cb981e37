package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLegacyToken_RoundTrip(t *testing.T) {
	token, err := IssueLegacyToken("user-1", "a@example.com", "secret", time.Hour)
	if err != nil {
		t.Fatalf("IssueLegacyToken failed: %v", err)
	}

	claims, err := ValidateLegacyToken(token, "secret")
	if err != nil {
		t.Fatalf("ValidateLegacyToken failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Issuer != LegacyIssuer {
		t.Errorf("unexpected claims %+v", claims)
	}

	if _, err := ValidateLegacyToken(token, "other"); err == nil {
		t.Error("expected signature error with wrong secret")
	}
}

func TestLegacyToken_Expired(t *testing.T) {
	token, err := IssueLegacyToken("user-1", "", "secret", time.Nanosecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := ValidateLegacyToken(token, "secret"); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestIssueLegacyToken_NoSecret(t *testing.T) {
	if _, err := IssueLegacyToken("u", "", "", 0); err == nil {
		t.Error("expected error without secret")
	}
}

func TestDiscoverJWKSURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"issuer":"x","jwks_uri":"https://issuer.example.com/oauth/v2/keys"}`))
	}))
	defer srv.Close()

	got, err := discoverJWKSURL(context.Background(), srv.Client(), srv.URL+"/")
	if err != nil {
		t.Fatalf("discoverJWKSURL failed: %v", err)
	}
	if got != "https://issuer.example.com/oauth/v2/keys" {
		t.Errorf("unexpected jwks url %s", got)
	}
}

func TestDiscoverJWKSURL_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := discoverJWKSURL(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Error("expected error when jwks_uri is absent")
	}
}

type stubVerifier struct {
	claims *Claims
}

func (s *stubVerifier) Validate(token string) (*Claims, error) {
	if s.claims == nil || token != "oidc-token" {
		return nil, errors.New("bad token")
	}
	return s.claims, nil
}

func (s *stubVerifier) Close() error { return nil }

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{"Bearer abc", "abc", nil},
		{"bearer  abc ", "abc", nil},
		{"", "", ErrMissingToken},
		{"Basic abc", "", ErrMalformedHeader},
		{"Bearer", "", ErrMalformedHeader},
		{"Bearer   ", "", ErrMalformedHeader},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if got != tt.token || !errors.Is(err, tt.err) {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, err, tt.token, tt.err)
		}
	}
}

func TestAuthenticator(t *testing.T) {
	legacy, err := IssueLegacyToken("legacy-user", "l@example.com", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	oidc := &stubVerifier{claims: &Claims{UserID: "oidc-user", PreferredUsername: "sam"}}

	tests := []struct {
		name     string
		verifier TokenVerifier
		secret   string
		token    string
		userID   string
		source   string
		err      error
	}{
		{"jwks", oidc, "secret", "oidc-token", "oidc-user", SourceJWKS, nil},
		{"legacy fallback", oidc, "secret", legacy, "legacy-user", SourceLegacy, nil},
		{"jwks only rejects legacy", oidc, "", legacy, "", "", ErrInvalidToken},
		{"legacy only", nil, "secret", legacy, "legacy-user", SourceLegacy, nil},
		{"nothing configured", nil, "", legacy, "", "", ErrAuthNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewAuthenticator(tt.verifier, tt.secret).Authenticate("Bearer " + tt.token)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate failed: %v", err)
			}
			if id.UserID != tt.userID || id.Source != tt.source {
				t.Errorf("unexpected identity %+v", id)
			}
		})
	}
}

func TestClaimsIdentity_NameFallsBackToUsername(t *testing.T) {
	id := (&Claims{UserID: "u", PreferredUsername: "sam"}).Identity()
	if id.Name != "sam" {
		t.Errorf("expected preferred username, got %q", id.Name)
	}
}
