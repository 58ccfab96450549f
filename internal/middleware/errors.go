package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/neogan74/auditledger/internal/logger"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Details   any       `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// BadRequest returns a 400 Bad Request error response
func BadRequest(c *fiber.Ctx, message string) error {
	return ErrorWithDetails(c, fiber.StatusBadRequest, message, nil)
}

// Unauthorized returns a 401 Unauthorized error response
func Unauthorized(c *fiber.Ctx, message string) error {
	return ErrorWithDetails(c, fiber.StatusUnauthorized, message, nil)
}

// Forbidden returns a 403 Forbidden error response
func Forbidden(c *fiber.Ctx, message string) error {
	return ErrorWithDetails(c, fiber.StatusForbidden, message, nil)
}

// NotFound returns a 404 Not Found error response
func NotFound(c *fiber.Ctx, message string) error {
	return ErrorWithDetails(c, fiber.StatusNotFound, message, nil)
}

// Conflict returns a 409 Conflict error response
func Conflict(c *fiber.Ctx, message string) error {
	return ErrorWithDetails(c, fiber.StatusConflict, message, nil)
}

// UnprocessableEntity returns a 422 Unprocessable Entity error response
func UnprocessableEntity(c *fiber.Ctx, message string) error {
	return ErrorWithDetails(c, fiber.StatusUnprocessableEntity, message, nil)
}

// InternalServerError returns a 500 Internal Server Error response
func InternalServerError(c *fiber.Ctx, message string) error {
	return ErrorWithDetails(c, fiber.StatusInternalServerError, message, nil)
}

// ErrorWithDetails writes an ErrorResponse with a machine-readable details
// payload, such as the unknown scope ids or a failed chain verification.
func ErrorWithDetails(c *fiber.Ctx, status int, message string, details any) error {
	response := ErrorResponse{
		Error:     utils.StatusMessage(status),
		Message:   message,
		Details:   details,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
		Path:      c.Path(),
	}

	fields := []logger.Field{
		logger.String("message", message),
		logger.String("method", c.Method()),
		logger.String("path", c.Path()),
		logger.Int("status", status),
		logger.String("user_ip", c.IP()),
	}
	log := GetLogger(c)
	if status >= fiber.StatusInternalServerError {
		log.Error("HTTP error response", fields...)
	} else {
		log.Warn("HTTP error response", fields...)
	}

	return c.Status(status).JSON(response)
}
