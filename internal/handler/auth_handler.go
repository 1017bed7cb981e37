package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/podcastgen/api/internal/auth"
)

// AuthHandler answers Traefik ForwardAuth checks
type AuthHandler struct {
	authn *auth.Authenticator
}

func NewAuthHandler(authn *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authn: authn}
}

// Verify handles GET /auth/verify. A valid token gets 200 and the X-User-*
// headers the gateway forwards to the podcast API, anything else 401.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	id, err := h.authn.Authenticate(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set("X-User-Id", id.UserID)
	if id.Email != "" {
		c.Set("X-User-Email", id.Email)
	}
	if id.Name != "" {
		c.Set("X-User-Name", id.Name)
	}
	return c.SendStatus(fiber.StatusOK)
}
