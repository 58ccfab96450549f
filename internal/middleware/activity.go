package middleware

import (
	"path"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/activity"
)

// ActivityConfig holds configuration for the activity middleware.
type ActivityConfig struct {
	Trail        *activity.Trail
	ResourceType string
	// Operation names the call; defaults to "<resource>.<verb>".
	Operation func(*fiber.Ctx) string
}

// Activity records one trail event per mutating request, after the handler
// has produced its status.
func Activity(cfg ActivityConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Trail.Enabled() || !isMutating(c.Method()) {
			return c.Next()
		}

		err := c.Next()

		status := responseStatus(c, err)

		event := activity.BuildEvent(c, operationName(c, cfg), cfg.ResourceType)
		event.HTTPStatus = status
		event.Result = activity.ResultFor(status)
		if _, recErr := cfg.Trail.Record(event); recErr != nil {
			GetLogger(c).Warn("Activity event dropped")
		}

		return err
	}
}

func operationName(c *fiber.Ctx, cfg ActivityConfig) string {
	if cfg.Operation != nil {
		if op := cfg.Operation(c); op != "" {
			return op
		}
	}
	switch c.Method() {
	case fiber.MethodPost:
		return cfg.ResourceType + ".create"
	case fiber.MethodPut:
		return cfg.ResourceType + ".update"
	case fiber.MethodDelete:
		return cfg.ResourceType + ".delete"
	default:
		return cfg.ResourceType + "." + c.Method()
	}
}

// AuditOperation maps audit routes to operation names, using the last path
// segment for lifecycle actions.
func AuditOperation(c *fiber.Ctx) string {
	segment := path.Base(c.Path())
	switch {
	case c.Method() == fiber.MethodPut:
		switch segment {
		case "start", "reconcile", "finalize", "cancel":
			return "audit." + segment
		}
	case c.Method() == fiber.MethodPost && segment == "readings":
		return "audit.collect"
	}
	return ""
}
