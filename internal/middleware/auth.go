package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/auth"
)

// Context keys set by the identity middleware
const (
	ActorIDKey    = "actor_id"
	AuthMethodKey = "auth_method"
)

// ActorHeader names the caller when bearer authentication is disabled.
const ActorHeader = "X-Actor-ID"

func isPublic(path string, publicPaths []string) bool {
	for _, p := range publicPaths {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

// JWTAuth creates a middleware for JWT authentication. The user id claim
// becomes the actor of every engine call made by the request.
func JWTAuth(jwtService *auth.JWTService, publicPaths []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isPublic(c.Path(), publicPaths) {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return Unauthorized(c, "missing authorization header")
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return Unauthorized(c, "invalid authorization header format")
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			switch err {
			case auth.ErrTokenExpired:
				return Unauthorized(c, "token expired")
			case auth.ErrTokenMissing:
				return Unauthorized(c, "token missing")
			default:
				return Unauthorized(c, "invalid token")
			}
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("username", claims.Username)
		c.Locals("roles", claims.Roles)
		c.Locals("claims", claims)
		c.Locals(ActorIDKey, claims.UserID)
		c.Locals(AuthMethodKey, "jwt")

		return c.Next()
	}
}

// HeaderIdentity trusts the X-Actor-ID header. It is used when bearer
// authentication is disabled, typically behind an authenticating proxy.
// With requireActor set, mutating requests without the header are rejected.
func HeaderIdentity(requireActor bool, publicPaths []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if actor := strings.TrimSpace(c.Get(ActorHeader)); actor != "" {
			c.Locals(ActorIDKey, actor)
			c.Locals(AuthMethodKey, "header")
			return c.Next()
		}
		if requireActor && isMutating(c.Method()) && !isPublic(c.Path(), publicPaths) {
			return Unauthorized(c, "missing "+ActorHeader+" header")
		}
		return c.Next()
	}
}

func isMutating(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return false
	}
	return true
}

// GetActorID returns the authenticated actor from the context
func GetActorID(c *fiber.Ctx) string {
	if actor, ok := c.Locals(ActorIDKey).(string); ok {
		return actor
	}
	return ""
}

// GetRoles returns the roles from the context
func GetRoles(c *fiber.Ctx) []string {
	if roles, ok := c.Locals("roles").([]string); ok {
		return roles
	}
	return []string{}
}

// GetClaims returns the JWT claims from the context
func GetClaims(c *fiber.Ctx) *auth.Claims {
	if claims, ok := c.Locals("claims").(*auth.Claims); ok {
		return claims
	}
	return nil
}

// HasRole checks if the user has a specific role
func HasRole(c *fiber.Ctx, role string) bool {
	for _, r := range GetRoles(c) {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole creates a middleware that requires a specific role
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !HasRole(c, role) {
			return Forbidden(c, "insufficient permissions")
		}
		return c.Next()
	}
}
