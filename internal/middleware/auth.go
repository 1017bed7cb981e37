package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/podcastgen/api/internal/auth"
	"github.com/podcastgen/api/pkg/response"
)

const identityKey = "identity"

// AuthMiddleware attaches the caller identity to podcast API requests
type AuthMiddleware struct {
	authn *auth.Authenticator
}

// NewAuthMiddleware creates bearer token middleware backed by authn
func NewAuthMiddleware(authn *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authn: authn}
}

// Authenticate rejects requests without a valid bearer token
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := m.authn.Authenticate(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return response.Unauthorized(c, authMessage(err))
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// Gateway trusts the X-User-* headers set by Traefik ForwardAuth
func Gateway() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}
		c.Locals(identityKey, &auth.Identity{
			UserID: userID,
			Email:  c.Get("X-User-Email"),
			Name:   c.Get("X-User-Name"),
			Source: auth.SourceGateway,
		})
		return c.Next()
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Missing authorization header"
	case errors.Is(err, auth.ErrMalformedHeader):
		return "Invalid authorization header format"
	case errors.Is(err, auth.ErrAuthNotConfigured):
		return "Authentication not configured"
	}
	return "Invalid or expired token"
}

// GetIdentity returns the caller attached by Authenticate or Gateway
func GetIdentity(c *fiber.Ctx) *auth.Identity {
	id, _ := c.Locals(identityKey).(*auth.Identity)
	return id
}

// GetUserID returns the caller's user id, or "" for anonymous requests
func GetUserID(c *fiber.Ctx) string {
	if id := GetIdentity(c); id != nil {
		return id.UserID
	}
	return ""
}
