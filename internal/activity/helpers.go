package activity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
)

// HashBody returns the hex SHA-256 of a request body, so the trail can
// prove what was submitted without storing it.
func HashBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ResultFor maps an HTTP status to an event result
func ResultFor(status int) string {
	switch {
	case status >= 500:
		return ResultError
	case status >= 400:
		return ResultDenied
	default:
		return ResultSuccess
	}
}

func localString(c *fiber.Ctx, key string) string {
	if v, ok := c.Locals(key).(string); ok {
		return v
	}
	return ""
}

// BuildEvent describes the current request. Identity and correlation ids
// are read from the locals set by the auth, logging and tracing middleware.
func BuildEvent(c *fiber.Ctx, operation, resourceType string) *Event {
	event := &Event{
		Timestamp:  c.Context().Time().UTC(),
		Operation:  operation,
		Resource:   Resource{Type: resourceType, ID: resourceID(c)},
		ActorID:    localString(c, "actor_id"),
		AuthMethod: localString(c, "auth_method"),
		SourceIP:   c.IP(),
		HTTPMethod: c.Method(),
		HTTPPath:   c.Path(),
		RequestID:  localString(c, "request_id"),
		TraceID:    localString(c, "trace_id"),
	}
	if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
		event.RequestHash = HashBody(c.Body())
	}
	return event
}

func resourceID(c *fiber.Ctx) string {
	for _, param := range []string{"id", "asset"} {
		if v := c.Params(param); v != "" {
			return v
		}
	}
	return ""
}
