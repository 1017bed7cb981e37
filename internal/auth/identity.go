package auth

import (
	"errors"
	"strings"
)

// Identity is the caller a podcast request is attributed to
type Identity struct {
	UserID string
	Email  string
	Name   string
	Source string
}

// Identity sources
const (
	SourceJWKS    = "jwks"
	SourceLegacy  = "legacy"
	SourceGateway = "gateway"
)

var (
	ErrMissingToken      = errors.New("missing authorization header")
	ErrMalformedHeader   = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrAuthNotConfigured = errors.New("authentication not configured")
)

// Identity maps OIDC claims onto a caller identity
func (c *Claims) Identity() *Identity {
	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}
	return &Identity{UserID: c.UserID, Email: c.Email, Name: name, Source: SourceJWKS}
}

// Identity maps locally signed claims onto a caller identity
func (c *LegacyClaims) Identity() *Identity {
	return &Identity{UserID: c.UserID, Email: c.Email, Source: SourceLegacy}
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMalformedHeader
	}
	return strings.TrimSpace(token), nil
}

// Authenticator checks tokens against the JWKS verifier first, then the
// legacy HMAC secret. Either may be absent.
type Authenticator struct {
	verifier TokenVerifier
	secret   string
}

// NewAuthenticator creates an authenticator. A nil verifier and an empty
// secret leave every request unauthenticated.
func NewAuthenticator(verifier TokenVerifier, secret string) *Authenticator {
	return &Authenticator{verifier: verifier, secret: secret}
}

// Authenticate resolves an Authorization header value to an identity
func (a *Authenticator) Authenticate(header string) (*Identity, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	if a.verifier == nil && a.secret == "" {
		return nil, ErrAuthNotConfigured
	}

	if a.verifier != nil {
		if claims, err := a.verifier.Validate(token); err == nil {
			return claims.Identity(), nil
		}
	}
	if a.secret != "" {
		if claims, err := ValidateLegacyToken(token, a.secret); err == nil {
			return claims.Identity(), nil
		}
	}
	return nil, ErrInvalidToken
}
