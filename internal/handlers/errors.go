package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/inventory"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/middleware"
	"github.com/neogan74/auditledger/internal/store"
)

// respondError maps engine errors to HTTP responses.
func respondError(c *fiber.Ctx, err error) error {
	var scopeErr *inventory.ScopeNotFoundError
	var validationErr *store.ValidationError

	switch {
	case errors.As(err, &scopeErr):
		return middleware.ErrorWithDetails(c, fiber.StatusBadRequest, err.Error(), fiber.Map{
			"sector_ids":   scopeErr.SectorIDs,
			"location_ids": scopeErr.LocationIDs,
		})
	case errors.As(err, &validationErr):
		return middleware.ErrorWithDetails(c, fiber.StatusBadRequest, err.Error(), fiber.Map{
			"field": validationErr.Field,
		})
	case errors.Is(err, inventory.ErrEmptyBatch):
		return middleware.BadRequest(c, err.Error())
	case store.IsNotFound(err):
		return middleware.NotFound(c, err.Error())
	case inventory.IsInvalidTransition(err),
		inventory.IsInvalidState(err),
		inventory.IsConcurrentModification(err),
		store.IsDuplicate(err):
		return middleware.Conflict(c, err.Error())
	case errors.Is(err, inventory.ErrEmptyCollectionSet):
		return middleware.UnprocessableEntity(c, err.Error())
	default:
		middleware.GetLogger(c).Error("Request failed", logger.Error(err))
		return middleware.InternalServerError(c, "internal error")
	}
}

// actorOf returns the caller identity established by the auth middleware.
func actorOf(c *fiber.Ctx) string {
	if actor := middleware.GetActorID(c); actor != "" {
		return actor
	}
	return "anonymous"
}
